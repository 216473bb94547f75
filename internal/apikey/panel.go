// Package apikey reads and replaces the model provider key held by the
// backend. The client only ever sees the masked form.
package apikey

import (
	"context"
	"strings"

	"pkt.systems/ecrituria/internal/apiclient"
	"pkt.systems/ecrituria/internal/dialog"
	"pkt.systems/ecrituria/schema"
	"pkt.systems/pslog"
)

const (
	// ExpectedPrefix is the prefix of provider keys.
	ExpectedPrefix = "sk-or-"
	// SavedNotice is shown after a successful save.
	SavedNotice = "✅ Clé API enregistrée avec succès!\n\nRedémarrez le serveur pour que les changements prennent effet."
	hiddenKey   = "************"
)

// Backend is the part of the API the panel uses.
type Backend interface {
	APIKey(ctx context.Context) (schema.APIKeyStatus, error)
	SetAPIKey(ctx context.Context, key string) error
}

// View is what the panel displays for the current key.
type View struct {
	Status  schema.APIKeyStatus
	Display string
	Hint    string
}

// Panel is the configuration dialog.
type Panel struct {
	backend Backend
	dialogs dialog.Dialogs
}

// New returns a Panel.
func New(backend Backend, dialogs dialog.Dialogs) *Panel {
	return &Panel{backend: backend, dialogs: dialogs}
}

// Load fetches the masked key.
func (p *Panel) Load(ctx context.Context) (View, error) {
	status, err := p.backend.APIKey(ctx)
	if err != nil {
		pslog.Ctx(ctx).Warn("api key load failed", "err", err)
		return View{Display: "Erreur de chargement"}, err
	}
	view := View{Status: status, Display: status.MaskedKey}
	if view.Display == "" {
		view.Display = hiddenKey
	}
	if !status.HasKey {
		view.Hint = "Aucune clé configurée"
	}
	return view, nil
}

// Save replaces the key after local checks and returns the reloaded view.
// A blank key sends nothing. A key without ExpectedPrefix needs confirmation.
func (p *Panel) Save(ctx context.Context, key string) (View, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		if err := p.dialogs.Alert(ctx, "Veuillez entrer une clé API"); err != nil {
			return View{}, err
		}
		return View{}, schema.ErrEmptyAPIKey
	}
	if !strings.HasPrefix(key, ExpectedPrefix) {
		ok, err := p.dialogs.Confirm(ctx, `La clé ne commence pas par "`+ExpectedPrefix+`". Continuer quand même ?`)
		if err != nil {
			return View{}, err
		}
		if !ok {
			return View{}, schema.ErrDeclined
		}
	}
	if err := p.backend.SetAPIKey(ctx, key); err != nil {
		pslog.Ctx(ctx).Warn("api key save failed", "err", err)
		_ = p.dialogs.Alert(ctx, "❌ Erreur lors de la sauvegarde: "+apiclient.DetailOf(err))
		return View{}, err
	}
	pslog.Ctx(ctx).Info("api key replaced")
	if err := p.dialogs.Alert(ctx, SavedNotice); err != nil {
		return View{}, err
	}
	return p.Load(ctx)
}
