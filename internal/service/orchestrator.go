package service

import (
	"context"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"

	"github.com/fitfusion/admin-console/internal/filter"
	"github.com/fitfusion/admin-console/internal/identity"
	"github.com/fitfusion/admin-console/internal/mirror"
	"github.com/fitfusion/admin-console/internal/model"
	"github.com/fitfusion/admin-console/internal/queue"
	"github.com/fitfusion/admin-console/internal/store"
	"github.com/fitfusion/admin-console/internal/utils"
)

// Orchestrator performs the ordered multi-document writes behind every
// commit, delete and toggle.  Steps of one call run strictly in order; two
// calls are never serialized against each other.  Nothing is retried.
type Orchestrator struct {
	store    store.Store
	identity identity.Provider
	hasher   utils.Hasher
	push     Publisher
	log      *log.Logger
	now      func() time.Time
}

func NewOrchestrator(s store.Store, idp identity.Provider, hasher utils.Hasher, push Publisher) *Orchestrator {
	if push == nil {
		push = NopPublisher{}
	}
	return &Orchestrator{
		store:    s,
		identity: idp,
		hasher:   hasher,
		push:     push,
		log:      log.New("console"),
		now:      time.Now,
	}
}

// Now is the orchestrator's clock, in local time.
func (o *Orchestrator) Now() time.Time { return o.now() }

// SetClock replaces the clock (for a fixed zone or a test).
func (o *Orchestrator) SetClock(now func() time.Time) { o.now = now }

// Commit persists d and returns the document id.
func (o *Orchestrator) Commit(ctx context.Context, k *Kind, d *Draft, mode Mode) (string, error) {
	if mode == Update {
		return o.update(ctx, k, d)
	}
	return o.create(ctx, k, d)
}

func (o *Orchestrator) create(ctx context.Context, k *Kind, d *Draft) (string, error) {
	fields := NewDraft("", d.Fields).Fields
	if err := k.validate("", fields); err != nil {
		return "", err
	}
	if k.Companion == nil {
		if k.beforeCreate != nil {
			k.beforeCreate(fields, o.now())
		}
		id, err := o.store.Create(ctx, k.Collection, fields)
		if err != nil {
			return "", errors.Wrapf(err, "create %s", k.Collection)
		}
		if k == Notifications {
			o.publishPush(ctx, id, fields)
		}
		return id, nil
	}

	// 1. credential first: on failure nothing has been written anywhere
	if !d.HasSecret() {
		return "", ErrSecretRequired
	}
	email := stringField(fields, k.Companion.EmailField)
	cred, err := o.identity.CreateCredential(ctx, email, d.secret)
	if err != nil {
		return "", err
	}

	// 2. hash
	hash, err := o.hasher.Hash(d.secret)
	if err != nil {
		return "", o.partial("hash", k.Collection, cred.ID, err)
	}
	fields["secretHash"] = hash
	if k.beforeCreate != nil {
		k.beforeCreate(fields, o.now())
	}

	// 3. domain document under the credential id
	if err := o.store.CreateWithID(ctx, k.Collection, cred.ID, fields); err != nil {
		return "", o.partial("domain write", k.Collection, cred.ID, err)
	}

	// 4. companion account under the same id
	acct, err := model.Encode(companionAccount(k, cred.ID, fields, hash))
	if err == nil {
		err = o.store.CreateWithID(ctx, model.CollectionAccounts, cred.ID, acct)
	}
	if err != nil {
		return "", o.partial("account write", model.CollectionAccounts, cred.ID, err)
	}
	return cred.ID, nil
}

func (o *Orchestrator) update(ctx context.Context, k *Kind, d *Draft) (string, error) {
	if d.ID == "" {
		return "", ErrNoDraft
	}
	merged := NewDraft(d.ID, d.Fields).Fields
	if err := k.validate(d.ID, merged); err != nil {
		return "", err
	}

	patch := map[string]any{}
	for f := range d.Touched {
		patch[f] = merged[f]
	}
	hash := ""
	if k.Companion != nil && d.HasSecret() {
		var err error
		if hash, err = o.hasher.Hash(d.secret); err != nil {
			return "", errors.Wrap(err, "hash secret")
		}
		patch["secretHash"] = hash
	}
	if k.beforeUpdate != nil {
		k.beforeUpdate(patch, o.now())
	}
	if len(patch) > 0 {
		if err := o.store.Update(ctx, k.Collection, d.ID, patch); err != nil {
			return "", errors.Wrapf(err, "update %s/%s", k.Collection, d.ID)
		}
	}

	if k.Companion == nil {
		return d.ID, nil
	}
	acct := map[string]any{
		"displayName": stringField(merged, k.Companion.NameField),
		"email":       stringField(merged, k.Companion.EmailField),
	}
	if k.Companion.SubRoleField != "" {
		acct["subRole"] = stringField(merged, k.Companion.SubRoleField)
	}
	if hash != "" {
		acct["secretHash"] = hash
	}
	if err := o.store.Update(ctx, model.CollectionAccounts, d.ID, acct); err != nil {
		return "", o.partial("account update", model.CollectionAccounts, d.ID, err)
	}
	return d.ID, nil
}

// Delete removes the domain document, then its companion account.  The
// identity credential is left in place.
func (o *Orchestrator) Delete(ctx context.Context, k *Kind, id string) error {
	if err := o.store.Delete(ctx, k.Collection, id); err != nil {
		return errors.Wrapf(err, "delete %s/%s", k.Collection, id)
	}
	if k.Companion == nil {
		return nil
	}
	if err := o.store.Delete(ctx, model.CollectionAccounts, id); err != nil {
		return o.partial("account delete", model.CollectionAccounts, id, err)
	}
	return nil
}

// Toggle writes a single boolean field and nothing else.
func (o *Orchestrator) Toggle(ctx context.Context, k *Kind, id, field string, value bool) error {
	if _, ok := k.Toggles[field]; !ok {
		return errors.Wrap(ErrUnknownToggle, field)
	}
	if err := o.store.Update(ctx, k.Collection, id, map[string]any{field: value}); err != nil {
		return errors.Wrapf(err, "toggle %s/%s.%s", k.Collection, id, field)
	}
	return nil
}

func (o *Orchestrator) partial(step, collection, id string, err error) error {
	o.log.Errorf("inconsistent write: %s failed for %s/%s: %v", step, collection, id, err)
	return &PartialWriteError{Step: step, Collection: collection, ID: id, Err: err}
}

func companionAccount(k *Kind, id string, fields map[string]any, hash string) model.Account {
	a := model.Account{
		ID:          id,
		DisplayName: stringField(fields, k.Companion.NameField),
		Email:       stringField(fields, k.Companion.EmailField),
		SecretHash:  hash,
		Role:        k.Companion.Role,
	}
	if k.Companion.SubRoleField != "" {
		a.SubRole = stringField(fields, k.Companion.SubRoleField)
	}
	return a
}

// publishPush is best effort: the commit already succeeded.
func (o *Orchestrator) publishPush(ctx context.Context, id string, fields map[string]any) {
	n, err := model.Decode[model.Notification](id, fields)
	if err != nil {
		o.log.Warnf("push %s: %v", id, err)
		return
	}
	ev := queue.PushNotificationEvent{
		NotificationID: id,
		TargetEmail:    n.TargetEmail,
		Title:          n.Title,
		Subtitle:       n.Subtitle,
		Description:    n.Description,
		Date:           n.Date,
		CreatedAt:      n.CreatedAt.UTC().Format(time.RFC3339),
	}
	if docs, err := o.store.GetAll(ctx, model.CollectionAcademies); err == nil {
		if a, ok := filter.AcademyFor(n, mirror.Entities[model.Academy](docs)); ok {
			ev.AcademyID, ev.AcademyName = a.ID, a.Name
		}
	}
	if err := o.push.PublishPush(ctx, ev); err != nil {
		o.log.Warnf("push %s not published: %v", id, err)
	}
}
