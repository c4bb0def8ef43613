package i18n

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestTranslate(t *testing.T) {
	if got := T("backend.errors.generate_failed"); got != "Error generating PDF" {
		t.Fatalf("got %q", got)
	}
	if got := New("es").T("backend.errors.generate_failed"); got != "Error al generar el PDF" {
		t.Fatalf("got %q", got)
	}
	if got := TWithData("backend.errors.too_many_files", map[string]string{"limit": "25"}); got != "Too many files. The limit is 25" {
		t.Fatalf("got %q", got)
	}
	if got := T("backend.errors.nope"); got != "backend.errors.nope" {
		t.Fatalf("unknown key: got %q", got)
	}
	if got := T("backend.errors"); got != "backend.errors" {
		t.Fatalf("non-leaf key: got %q", got)
	}
	if New("fr").Lang() != "en" {
		t.Fatal("unknown language should fall back to English")
	}
}

// Every key in a non-English locale must also exist in English and vice versa.
func TestLocalesHaveSameKeys(t *testing.T) {
	flatten := func(lang string) map[string]bool {
		out := map[string]bool{}
		var walk func(prefix string, m map[string]interface{})
		walk = func(prefix string, m map[string]interface{}) {
			for k, v := range m {
				if sub, ok := v.(map[string]interface{}); ok {
					walk(prefix+k+".", sub)
				} else {
					out[prefix+k] = true
				}
			}
		}
		walk("", New(lang).data)
		return out
	}
	en := flatten("en")
	for _, lang := range Supported() {
		other := flatten(lang)
		for k := range en {
			if !other[k] {
				t.Errorf("%s missing %s", lang, k)
			}
		}
		for k := range other {
			if !en[k] {
				t.Errorf("%s has extra key %s", lang, k)
			}
		}
	}
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		query, header, want string
	}{
		{"", "", "en"},
		{"es", "", "es"},
		{"xx", "", "en"},
		{"", "es-MX,es;q=0.9,en;q=0.8", "es"},
		{"", "fr-FR,fr;q=0.9", "en"},
		{"en", "es", "en"},
	}
	for _, tt := range tests {
		if got := detectLanguage(tt.query, tt.header); got != tt.want {
			t.Errorf("detectLanguage(%q,%q)=%q, want %q", tt.query, tt.header, got, tt.want)
		}
	}
}

func TestLanguageMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(LanguageMiddleware())
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": TFromContext(c.Request.Context(), "backend.status.done")})
	})

	req := httptest.NewRequest(http.MethodGet, "/?lang=es", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var body map[string]string
	json.Unmarshal(w.Body.Bytes(), &body)
	if body["msg"] != "Listo" {
		t.Fatalf("got %q", body["msg"])
	}
	if w.Header().Get("Content-Language") != "es" {
		t.Fatalf("Content-Language=%q", w.Header().Get("Content-Language"))
	}

	if GetLanguageFromContext(context.Background()) != "en" {
		t.Fatal("default language should be en")
	}
}
