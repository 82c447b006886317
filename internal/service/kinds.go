package service

import (
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/fitfusion/admin-console/internal/model"
)

// SecretField is the stageable pseudo-field carrying a plaintext secret.  It
// is never written anywhere; only its hash is.
const SecretField = "secret"

// Messages are the user-facing texts of one entity kind.
type Messages struct {
	Created       string
	Updated       string
	Deleted       string
	SaveFailed    string
	DeleteFailed  string
	ConfirmDelete string
}

// Companion describes how a kind maps onto its paired Account.
type Companion struct {
	Role         string
	NameField    string
	EmailField   string
	SubRoleField string
}

// Toggle is a confirm-then-write flip of one boolean field.
type Toggle struct {
	Field  string
	Prompt func(next bool) string
	Done   func(next bool) string
	Failed func(next bool) string
}

// Kind is everything the console needs to know about one entity type.
type Kind struct {
	Screen     string // URL segment
	Collection string
	Fields     []string
	SortField  string
	Companion  *Companion
	Toggles    map[string]Toggle
	Messages   Messages

	validate     func(id string, fields map[string]any) error
	check        func(field string, value any) error
	defaults     func(now time.Time) map[string]any
	beforeCreate func(fields map[string]any, now time.Time)
	beforeUpdate func(patch map[string]any, now time.Time)
}

// Stageable reports whether field may be staged on a draft of this kind.
func (k *Kind) Stageable(field string) bool {
	if field == SecretField {
		return k.Companion != nil
	}
	for _, f := range k.Fields {
		if f == field {
			return true
		}
	}
	return false
}

func validatorFor[T any]() (func(string, map[string]any) error, func(string, any) error) {
	validate := func(id string, fields map[string]any) error {
		v, err := model.Decode[T](id, fields)
		if err != nil {
			return errors.Wrap(ErrInvalidValue, err.Error())
		}
		return model.Validate(v)
	}
	check := func(field string, value any) error {
		if _, err := model.Decode[T]("", map[string]any{field: value}); err != nil {
			return errors.Wrapf(ErrInvalidValue, "campo %s", field)
		}
		return nil
	}
	return validate, check
}

func stampCreated(fields map[string]any, now time.Time) { fields["createdAt"] = now.UTC() }
func stampUpdated(patch map[string]any, now time.Time)  { patch["updatedAt"] = now.UTC() }

var (
	Academies     = newAcademyKind()
	Admins        = newAdminKind()
	Articles      = newArticleKind()
	Notifications = newNotificationKind()
)

// Kinds indexes every kind by screen name.
var Kinds = map[string]*Kind{
	Academies.Screen:     Academies,
	Admins.Screen:        Admins,
	Articles.Screen:      Articles,
	Notifications.Screen: Notifications,
}

func newAcademyKind() *Kind {
	validate, check := validatorFor[model.Academy]()
	flip := func(yes, no string) func(bool) string {
		return func(next bool) string {
			if next {
				return yes
			}
			return no
		}
	}
	return &Kind{
		Screen:     "gyms",
		Collection: model.CollectionAcademies,
		Fields: []string{"name", "ownerName", "ownerEmail", "blocked", "payment",
			"planName", "planDurationMonths", "planEndDate"},
		SortField: "name",
		Companion: &Companion{Role: model.RoleGymOwner, NameField: "ownerName", EmailField: "ownerEmail"},
		Toggles: map[string]Toggle{
			"blocked": {
				Field:  "blocked",
				Prompt: flip("Tem certeza que deseja bloquear esta academia?", "Tem certeza que deseja desbloquear esta academia?"),
				Done:   flip("Academia bloqueada com sucesso!", "Academia desbloqueada com sucesso!"),
				Failed: flip("Erro ao bloquear academia", "Erro ao desbloquear academia"),
			},
			"payment": {
				Field:  "payment",
				Prompt: flip("Tem certeza que deseja marcar o pagamento como concluído?", "Tem certeza que deseja marcar o pagamento como pendente?"),
				Done:   flip("Pagamento concluído com sucesso!", "Pagamento pendente com sucesso!"),
				Failed: flip("Erro ao alterar status de pagamento", "Erro ao alterar status de pagamento"),
			},
		},
		Messages: Messages{
			Created:       "Academia adicionada com sucesso!",
			Updated:       "Academia atualizada com sucesso!",
			Deleted:       "Academia excluída com sucesso!",
			SaveFailed:    "Erro ao salvar academia",
			DeleteFailed:  "Erro ao excluir academia",
			ConfirmDelete: "Tem certeza que deseja excluir esta academia?",
		},
		validate: validate,
		check:    check,
		defaults: func(time.Time) map[string]any {
			return map[string]any{
				"name": "", "ownerName": "", "ownerEmail": "",
				"blocked": false, "payment": false,
				"planName": "", "planDurationMonths": 0, "planEndDate": "",
			}
		},
	}
}

func newAdminKind() *Kind {
	validate, check := validatorFor[model.Admin]()
	return &Kind{
		Screen:     "admins",
		Collection: model.CollectionAdmins,
		Fields:     []string{"name", "email", "subRole"},
		SortField:  "name",
		Companion:  &Companion{Role: model.RoleAdmin, NameField: "name", EmailField: "email", SubRoleField: "subRole"},
		Messages: Messages{
			Created:       "Administrador adicionado com sucesso!",
			Updated:       "Administrador atualizado com sucesso!",
			Deleted:       "Administrador excluído com sucesso!",
			SaveFailed:    "Erro ao salvar administrador",
			DeleteFailed:  "Erro ao excluir administrador",
			ConfirmDelete: "Tem certeza que deseja excluir este administrador?",
		},
		validate: validate,
		check:    check,
		defaults: func(time.Time) map[string]any {
			return map[string]any{"name": "", "email": ""}
		},
	}
}

func newArticleKind() *Kind {
	validate, check := validatorFor[model.Article]()
	return &Kind{
		Screen:     "articles",
		Collection: model.CollectionArticles,
		Fields:     []string{"title", "description", "category"},
		SortField:  "title",
		Messages: Messages{
			Created:       "Artigo salvo com sucesso!",
			Updated:       "Artigo atualizado com sucesso!",
			Deleted:       "Artigo excluído com sucesso!",
			SaveFailed:    "Erro ao salvar artigo",
			DeleteFailed:  "Erro ao excluir artigo",
			ConfirmDelete: "Tem certeza que deseja excluir este artigo?",
		},
		validate: validate,
		check:    check,
		defaults: func(time.Time) map[string]any {
			return map[string]any{"title": "", "description": "", "category": string(model.CategoryTraining)}
		},
	}
}

func newNotificationKind() *Kind {
	validate, check := validatorFor[model.Notification]()
	return &Kind{
		Screen:     "notifications",
		Collection: model.CollectionNotifications,
		Fields:     []string{"title", "subtitle", "description", "targetEmail", "date"},
		SortField:  "title",
		Messages: Messages{
			Created:       "Notificação criada com sucesso!",
			Updated:       "Notificação atualizada com sucesso!",
			Deleted:       "Notificação excluída com sucesso!",
			SaveFailed:    "Erro ao salvar notificação",
			DeleteFailed:  "Erro ao excluir notificação",
			ConfirmDelete: "Tem certeza que deseja excluir esta notificação?",
		},
		validate: validate,
		check:    check,
		defaults: func(now time.Time) map[string]any {
			return map[string]any{
				"title": "", "subtitle": "", "description": "", "targetEmail": "",
				"date": now.Format(model.DateLayout),
			}
		},
		beforeCreate: stampCreated,
		beforeUpdate: stampUpdated,
	}
}

func stringField(fields map[string]any, name string) string {
	s, _ := fields[name].(string)
	return strings.TrimSpace(s)
}
