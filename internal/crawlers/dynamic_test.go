package crawlers

import (
	"strings"
	"testing"
)

func TestContainerSelectorsJS(t *testing.T) {
	want := `["main article", "main", "article"]`
	if got := containerSelectorsJS(); got != want {
		t.Errorf("containerSelectorsJS() = %s, 期望 %s", got, want)
	}
}

func TestExtractJS_HiddenRoot(t *testing.T) {
	tests := []struct {
		name  string
		part  string
		exist bool
	}{
		{"按容器选择器查找根节点", "hiddenRoot(" + containerSelectorsJS() + ") || document.body", true},
		{"从根节点开始删除", "removeHidden(root)", true},
		{"不直接遍历整个body", "removeHidden(document.body)", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := strings.Contains(extractJS, tt.part); got != tt.exist {
				t.Errorf("extractJS包含%q = %v, 期望 %v", tt.part, got, tt.exist)
			}
		})
	}
}
