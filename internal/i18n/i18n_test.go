package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	loc := NewLocalizer(lang)
	return WithLocalizer(context.Background(), loc)
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "AppTitle")
	if got != "Mock Test" {
		t.Errorf("T(AppTitle) = %q, want 'Mock Test'", got)
	}

	got = T(ctx, "StatusFlagged")
	if got != "Flagged" {
		t.Errorf("T(StatusFlagged) = %q, want 'Flagged'", got)
	}
}

func TestTranslateRussian(t *testing.T) {
	ctx := initLang(t, "ru")

	got := T(ctx, "AppTitle")
	if got != "Пробный тест" {
		t.Errorf("T(AppTitle) = %q, want 'Пробный тест'", got)
	}

	got = T(ctx, "ErrSubmissionInFlight")
	if got != "Ваши ответы уже отправляются." {
		t.Errorf("T(ErrSubmissionInFlight) = %q", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	if got := Tp(ctx, "QuestionsCount", 1); got != "1 question" {
		t.Errorf("Tp(QuestionsCount, 1) = %q, want '1 question'", got)
	}
	if got := Tp(ctx, "QuestionsCount", 5); got != "5 questions" {
		t.Errorf("Tp(QuestionsCount, 5) = %q, want '5 questions'", got)
	}

	ctx = initLang(t, "ru")
	if got := Tp(ctx, "QuestionsCount", 5); got != "5 вопросов" {
		t.Errorf("Tp(QuestionsCount, 5) ru = %q, want '5 вопросов'", got)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "ScoreLine", map[string]any{"Score": 7, "Total": 10})
	if got != "You scored 7 out of 10" {
		t.Errorf("Td(ScoreLine) = %q, want 'You scored 7 out of 10'", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "NonExistentKey")
	if got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestMiddlewarePrefersAcceptLanguage(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}

	var got string
	h := Middleware("en")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = T(r.Context(), "GoBack")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "Назад" {
		t.Errorf("with Accept-Language ru got %q, want 'Назад'", got)
	}

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if got != "Go back" {
		t.Errorf("without Accept-Language got %q, want 'Go back'", got)
	}
}
