package i18n

import (
	"embed"
	"log/slog"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed *.toml
var catalogs embed.FS

// Localizer resolves error message keys into user-facing text. Unknown
// languages fall back to the default catalog, unknown keys echo the key.
type Localizer struct {
	bundle   *i18n.Bundle
	registry map[string]*i18n.Localizer
}

func NewLocalizer(languages ...string) Localizer {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	l := Localizer{
		bundle:   bundle,
		registry: make(map[string]*i18n.Localizer, len(languages)),
	}

	for _, lang := range languages {
		file := lang + ".toml"
		if _, err := bundle.LoadMessageFileFS(catalogs, file); err != nil {
			slog.Error("failed to load message catalog", slog.String("lang", lang), slog.String("file", file), slog.String("error", err.Error()))
			continue
		}
		l.registry[lang] = i18n.NewLocalizer(bundle, lang)
	}

	return l
}

func (l Localizer) Get(lang string, id string) string {
	localizer := l.registry[lang]
	if localizer == nil {
		localizer = l.registry[DEFAULT_LANG]
	}
	if localizer == nil {
		return id
	}

	str, err := localizer.Localize(&i18n.LocalizeConfig{
		DefaultMessage: &i18n.Message{
			ID:    id,
			One:   id,
			Other: id,
		},
	})
	if err != nil {
		slog.Debug("message key missing from catalog", slog.String("lang", lang), slog.String("id", id))
		return id
	}

	return str
}
