package i18n

import (
	"context"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"
)

// langKey is the key used to store language in context
type langKey struct{}

// LanguageMiddleware detects the user's language preference and sets it in context
func LanguageMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := detectLanguage(c.Query("lang"), c.GetHeader("Accept-Language"))
		ctx := context.WithValue(c.Request.Context(), langKey{}, lang)
		c.Request = c.Request.WithContext(ctx)
		c.Header("Content-Language", lang)
		c.Next()
	}
}

// detectLanguage prefers an explicit ?lang= and then Accept-Language.
func detectLanguage(query, acceptLanguage string) string {
	if query != "" {
		if _, ok := localizers[query]; ok {
			return query
		}
	}
	if acceptLanguage != "" {
		tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
		if err == nil && len(tags) > 0 {
			_, idx, conf := matcher.Match(tags...)
			if conf != language.No {
				return Supported()[idx]
			}
		}
	}
	return "en"
}

// GetLanguageFromContext extracts the language from the request context
func GetLanguageFromContext(ctx context.Context) string {
	if lang, ok := ctx.Value(langKey{}).(string); ok {
		return lang
	}
	return "en"
}

// TFromContext translates a key using the language from context
func TFromContext(ctx context.Context, key string) string {
	return New(GetLanguageFromContext(ctx)).T(key)
}

// TWithDataFromContext translates a key with data using the language from context
func TWithDataFromContext(ctx context.Context, key string, data map[string]string) string {
	return New(GetLanguageFromContext(ctx)).TWithData(key, data)
}
