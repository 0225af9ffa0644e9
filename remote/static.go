package remote

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/pitabwire/util"
)

// StaticFetcher serves bundles held in memory. It stands in for the API in
// demos and tests.
type StaticFetcher struct {
	mu      sync.RWMutex
	bundles map[string]map[string]string
	delay   time.Duration
}

var _ Fetcher = (*StaticFetcher)(nil)

// NewStaticFetcher creates a fetcher over bundles, keyed by locale.
func NewStaticFetcher(bundles map[string]map[string]string) *StaticFetcher {
	f := &StaticFetcher{bundles: map[string]map[string]string{}}
	for locale, strs := range bundles {
		f.bundles[locale] = maps.Clone(strs)
	}
	return f
}

// NewSampleFetcher returns a fetcher preloaded with a small sample catalogue
// for en, es, fr, he and de.
func NewSampleFetcher() *StaticFetcher {
	return NewStaticFetcher(sampleBundles())
}

// WithDelay makes every fetch wait d first, honouring cancellation.
func (f *StaticFetcher) WithDelay(d time.Duration) *StaticFetcher {
	f.mu.Lock()
	f.delay = d
	f.mu.Unlock()
	return f
}

func (f *StaticFetcher) FetchStrings(ctx context.Context, locale string) (map[string]string, error) {
	f.mu.RLock()
	delay := f.delay
	f.mu.RUnlock()

	if delay > 0 {
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, failure(locale, ctx.Err())
		case <-t.C:
		}
	}

	f.mu.RLock()
	strs := maps.Clone(f.bundles[locale])
	f.mu.RUnlock()

	if strs == nil {
		strs = map[string]string{}
	}
	util.Log(ctx).WithField("locale", locale).WithField("count", len(strs)).Debug("serving static bundle")
	return strs, nil
}

// Add adds or replaces the bundle for locale.
func (f *StaticFetcher) Add(locale string, strs map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bundles[locale] = maps.Clone(strs)
}

// Locales lists the locales with a bundle, sorted.
func (f *StaticFetcher) Locales() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Sorted(maps.Keys(f.bundles))
}

func sampleBundles() map[string]map[string]string {
	return map[string]map[string]string{
		"en": {
			"welcome_message": "Welcome to our app!",
			"login_button":    "Login",
			"signup_button":   "Sign Up",
			"settings_title":  "Settings",
			"profile_title":   "Profile",
			"logout_button":   "Logout",
			"greeting":        "Hello",
			"goodbye":         "Goodbye",
		},
		"es": {
			"welcome_message": "¡Bienvenido a nuestra aplicación!",
			"login_button":    "Iniciar sesión",
			"signup_button":   "Registrarse",
			"settings_title":  "Configuración",
			"profile_title":   "Perfil",
			"logout_button":   "Cerrar sesión",
			"greeting":        "Hola",
			"goodbye":         "Adiós",
		},
		"fr": {
			"welcome_message": "Bienvenue dans notre application!",
			"login_button":    "Connexion",
			"signup_button":   "S'inscrire",
			"settings_title":  "Paramètres",
			"profile_title":   "Profil",
			"logout_button":   "Déconnexion",
			"greeting":        "Bonjour",
			"goodbye":         "Au revoir",
		},
		"he": {
			"welcome_message": "ברוכים הבאים לאפליקציה שלנו!",
			"login_button":    "התחברות",
			"signup_button":   "הרשמה",
			"settings_title":  "הגדרות",
			"profile_title":   "פרופיל",
			"logout_button":   "התנתקות",
			"greeting":        "שלום",
			"goodbye":         "להתראות",
		},
		"de": {
			"welcome_message": "Willkommen in unserer App!",
			"login_button":    "Anmelden",
			"signup_button":   "Registrieren",
			"settings_title":  "Einstellungen",
			"profile_title":   "Profil",
			"logout_button":   "Abmelden",
			"greeting":        "Hallo",
			"goodbye":         "Auf Wiedersehen",
		},
	}
}
