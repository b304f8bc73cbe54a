package i18n

import "testing"

func clearLocaleEnv(t *testing.T) {
	t.Helper()
	for _, env := range []string{"LANGUAGE", "LC_ALL", "LC_MESSAGES", "LANG"} {
		t.Setenv(env, "")
	}
}

func resetLocale(t *testing.T) {
	t.Helper()
	oldPo, oldActive := po, active
	t.Cleanup(func() { po, active = oldPo, oldActive })
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"LANGUAGE wins", map[string]string{"LANGUAGE": "zh_CN:en_US", "LC_ALL": "de_DE.UTF-8"}, "zh_CN"},
		{"encoding stripped", map[string]string{"LANG": "zh_TW.UTF-8"}, "zh_TW"},
		{"modifier stripped", map[string]string{"LC_MESSAGES": "sr_RS@latin"}, "sr_RS"},
		{"C and POSIX skipped", map[string]string{"LANGUAGE": "C", "LC_ALL": "POSIX", "LANG": "fr_FR.UTF-8"}, "fr_FR"},
		{"defaults to en", nil, "en"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearLocaleEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if got := detectLanguage(); got != tt.want {
				t.Fatalf("detectLanguage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPassthroughBeforeInit(t *testing.T) {
	resetLocale(t)
	po, active = nil, ""

	if got := T("Cache cleared"); got != "Cache cleared" {
		t.Fatalf("T = %q", got)
	}
	if got := N("%d highlight", "%d highlights", 1); got != "%d highlight" {
		t.Fatalf("N(1) = %q", got)
	}
	if got := N("%d highlight", "%d highlights", 3); got != "%d highlights" {
		t.Fatalf("N(3) = %q", got)
	}
	if Language() != "" {
		t.Fatalf("Language() = %q before Init", Language())
	}
}

func TestEmbeddedChineseCatalogue(t *testing.T) {
	resetLocale(t)
	Init("zh_CN")

	if Language() != "zh_CN" {
		t.Fatalf("Language() = %q", Language())
	}
	if got := T("Cache cleared"); got != "缓存已清空" {
		t.Fatalf("T = %q", got)
	}
	if got := N("%d highlight", "%d highlights", 5); got != "%d 个标注" {
		t.Fatalf("N = %q", got)
	}
	if got := T("a message nobody translated"); got != "a message nobody translated" {
		t.Fatalf("untranslated T = %q", got)
	}
}

func TestUnknownLanguagePassesThrough(t *testing.T) {
	resetLocale(t)
	Init("xx_XX")

	if got := T("Prompt saved"); got != "Prompt saved" {
		t.Fatalf("T = %q", got)
	}
}
