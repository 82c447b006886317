package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitfusion/admin-console/internal/identity"
	"github.com/fitfusion/admin-console/internal/model"
	"github.com/fitfusion/admin-console/internal/notice"
	"github.com/fitfusion/admin-console/internal/store"
	"github.com/fitfusion/admin-console/internal/utils"
)

func gymFields(email string) map[string]any {
	return map[string]any{
		"name":               "Gym X",
		"ownerName":          "Xavier",
		"ownerEmail":         email,
		"planName":           "Anual",
		"planDurationMonths": 12,
		"planEndDate":        "2026-11-01",
	}
}

func containsValue(docs []store.Document, v string) bool {
	for _, d := range docs {
		for _, f := range d.Fields {
			if s, ok := f.(string); ok && s == v {
				return true
			}
		}
	}
	return false
}

func TestCreateAcademyWritesDomainAndAccount(t *testing.T) {
	f := newFixture(t)
	sc := f.screen(t, Academies)
	ctx := context.Background()

	require.NoError(t, sc.BeginCreate())
	stageAll(t, sc.Editor, gymFields("x@x.com"))
	require.NoError(t, sc.Editor.Stage(SecretField, "abc123"))

	id, err := sc.Commit(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Equal(t, 1, f.idp.creates)

	assert.Equal(t, []string{
		"set academias/" + id + " [blocked,name,ownerEmail,ownerName,payment,planDurationMonths,planEndDate,planName,secretHash]",
		"set users/" + id + " [displayName,email,role,secretHash]",
	}, f.store.Writes())

	gym, err := f.store.Get(ctx, model.CollectionAcademies, id)
	require.NoError(t, err)
	hash, _ := gym.Fields["secretHash"].(string)
	assert.NotEmpty(t, hash)
	assert.NotEqual(t, "abc123", hash)
	assert.True(t, utils.VerifyPassword(hash, "abc123"))

	acct, err := f.store.Get(ctx, model.CollectionAccounts, id)
	require.NoError(t, err)
	a, err := model.Decode[model.Account](acct.ID, acct.Fields)
	require.NoError(t, err)
	assert.Equal(t, model.Account{ID: id, DisplayName: "Xavier", Email: "x@x.com", SecretHash: hash, Role: model.RoleGymOwner}, a)

	for _, c := range []string{model.CollectionAcademies, model.CollectionAccounts} {
		docs, _ := f.store.GetAll(ctx, c)
		assert.False(t, containsValue(docs, "abc123"), "plaintext secret persisted in %s", c)
	}

	assert.Equal(t, "Academia adicionada com sucesso!", f.notice())
	assert.Equal(t, Closed, sc.Editor.State())
	assert.Len(t, sc.Mirror.Snapshot(), 1)
}

func TestCreateAbortsWhenCredentialFails(t *testing.T) {
	tests := []struct {
		name   string
		email  string
		secret string
		want   error
		notice string
	}{
		{"duplicate email", "dup@x.com", "abc123", identity.ErrEmailExists, "Erro ao salvar academia: Este email já está em uso."},
		{"weak secret", "new@x.com", "123", identity.ErrWeakSecret, "Erro ao salvar academia: A senha deve ter pelo menos 6 caracteres."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.idp.CreateCredential(context.Background(), "dup@x.com", "abc123")
			require.NoError(t, err)
			sc := f.screen(t, Academies)

			require.NoError(t, sc.BeginCreate())
			stageAll(t, sc.Editor, gymFields(tt.email))
			require.NoError(t, sc.Editor.Stage(SecretField, tt.secret))

			_, err = sc.Commit(context.Background())
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, f.store.Writes(), "no store write after a credential failure")
			assert.Equal(t, tt.notice, f.notice())
			assert.Equal(t, Creating, sc.Editor.State(), "form stays open for a retry")
		})
	}
}

func TestCreateRequiresSecretAndValidFields(t *testing.T) {
	f := newFixture(t)
	sc := f.screen(t, Academies)

	require.NoError(t, sc.BeginCreate())
	stageAll(t, sc.Editor, gymFields("x@x.com"))
	_, err := sc.Commit(context.Background())
	assert.ErrorIs(t, err, ErrSecretRequired)
	assert.Equal(t, "Erro ao salvar academia: A senha é obrigatória.", f.notice())

	require.NoError(t, sc.Editor.Stage("ownerEmail", "not-an-email"))
	require.NoError(t, sc.Editor.Stage(SecretField, "abc123"))
	_, err = sc.Commit(context.Background())
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "ownerEmail")
	assert.Equal(t, 0, f.idp.creates)
	assert.Empty(t, f.store.Writes())
}

func TestCreatePartialFailureIsReportedNotRepaired(t *testing.T) {
	f := newFixture(t)
	f.store.failOn["set users"] = errors.New("permission denied")
	sc := f.screen(t, Academies)

	require.NoError(t, sc.BeginCreate())
	stageAll(t, sc.Editor, gymFields("x@x.com"))
	require.NoError(t, sc.Editor.Stage(SecretField, "abc123"))
	_, err := sc.Commit(context.Background())

	var perr *PartialWriteError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "account write", perr.Step)
	assert.Len(t, sc.Mirror.Snapshot(), 1, "orphaned academy stays")
	accounts, _ := f.store.GetAll(context.Background(), model.CollectionAccounts)
	assert.Empty(t, accounts)
	assert.True(t, strings.HasPrefix(f.notice(), "Erro ao salvar academia: "))
}

func seedGym(t *testing.T, f *fixture, email, secret string) string {
	t.Helper()
	d := NewDraft("", gymFields(email))
	d.SetSecret(secret)
	id, err := f.orch.Commit(context.Background(), Academies, d, Create)
	require.NoError(t, err)
	f.store.Reset()
	return id
}

func TestUpdateKeepsHashWhenNoSecretStaged(t *testing.T) {
	f := newFixture(t)
	id := seedGym(t, f, "x@x.com", "abc123")
	ctx := context.Background()
	before, _ := f.store.Get(ctx, model.CollectionAcademies, id)

	sc := f.screen(t, Academies)
	require.NoError(t, sc.BeginEdit(id))
	assert.NotContains(t, sc.Editor.View().Fields, "secretHash")
	require.NoError(t, sc.Editor.Stage("ownerName", "Xena"))
	require.NoError(t, sc.Editor.Stage(SecretField, ""))

	_, err := sc.Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"update academias/" + id + " [ownerName]",
		"update users/" + id + " [displayName,email]",
	}, f.store.Writes())

	after, _ := f.store.Get(ctx, model.CollectionAcademies, id)
	assert.Equal(t, before.Fields["secretHash"], after.Fields["secretHash"])
	acct, _ := f.store.Get(ctx, model.CollectionAccounts, id)
	assert.Equal(t, "Xena", acct.Fields["displayName"])
	assert.Equal(t, before.Fields["secretHash"], acct.Fields["secretHash"])
	assert.Equal(t, "Academia atualizada com sucesso!", f.notice())
	assert.Equal(t, Closed, sc.Editor.State())
}

func TestUpdateRehashesNewSecret(t *testing.T) {
	f := newFixture(t)
	id := seedGym(t, f, "x@x.com", "abc123")
	ctx := context.Background()

	sc := f.screen(t, Academies)
	require.NoError(t, sc.BeginEdit(id))
	require.NoError(t, sc.Editor.Stage(SecretField, "novaSenha"))
	_, err := sc.Commit(ctx)
	require.NoError(t, err)

	gym, _ := f.store.Get(ctx, model.CollectionAcademies, id)
	acct, _ := f.store.Get(ctx, model.CollectionAccounts, id)
	hash := gym.Fields["secretHash"].(string)
	assert.True(t, utils.VerifyPassword(hash, "novaSenha"))
	assert.Equal(t, hash, acct.Fields["secretHash"])
	assert.Equal(t, 1, f.idp.creates, "update never creates credentials")
}

func TestConcurrentUpdatesRace(t *testing.T) {
	// two commits against the same document are not serialized: both land
	// and the last writer wins, whichever that is
	f := newFixture(t)
	id := seedGym(t, f, "x@x.com", "abc123")

	var wg sync.WaitGroup
	names := []string{"Primeira", "Segunda"}
	errs := make([]error, len(names))
	for i, n := range names {
		wg.Add(1)
		go func(i int, n string) {
			defer wg.Done()
			d := NewDraft(id, gymFields("x@x.com"))
			d.Fields["name"] = n
			d.Touched["name"] = true
			_, errs[i] = f.orch.Commit(context.Background(), Academies, d, Update)
		}(i, n)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
	gym, err := f.store.Get(context.Background(), model.CollectionAcademies, id)
	require.NoError(t, err)
	assert.Contains(t, names, gym.Fields["name"])
	assert.Len(t, f.store.Writes(), 4)
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.CreateWithID(ctx, model.CollectionNotifications, "n1",
		map[string]any{"title": "t", "description": "d", "targetEmail": "a@b.com"}))
	f.store.Reset()
	sc := f.screen(t, Notifications)

	p, err := sc.RequestDelete("n1")
	require.NoError(t, err)
	assert.Equal(t, "Tem certeza que deseja excluir esta notificação?", p.Prompt)
	assert.Empty(t, f.store.Writes(), "asking is not deleting")
	assert.Equal(t, notice.Hidden, f.notices.State())

	require.NoError(t, sc.Resolve(ctx, p.ID, false))
	assert.Empty(t, f.store.Writes())
	assert.Equal(t, notice.Hidden, f.notices.State())
	assert.ErrorIs(t, sc.Resolve(ctx, p.ID, true), ErrNoConfirmation, "a declined request is gone")

	p, err = sc.RequestDelete("n1")
	require.NoError(t, err)
	require.NoError(t, sc.Resolve(ctx, p.ID, true))
	assert.Equal(t, []string{"delete notifications/n1 []"}, f.store.Writes())
	assert.Empty(t, sc.Mirror.Snapshot())
	assert.Equal(t, "Notificação excluída com sucesso!", f.notice())

	_, err = sc.RequestDelete("n1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteAcademyRemovesAccount(t *testing.T) {
	f := newFixture(t)
	id := seedGym(t, f, "x@x.com", "abc123")
	sc := f.screen(t, Academies)

	p, err := sc.RequestDelete(id)
	require.NoError(t, err)
	require.NoError(t, sc.Resolve(context.Background(), p.ID, true))
	assert.Equal(t, []string{"delete academias/" + id + " []", "delete users/" + id + " []"}, f.store.Writes())
	assert.Equal(t, "Academia excluída com sucesso!", f.notice())
}

func TestDeleteFailureKeepsState(t *testing.T) {
	f := newFixture(t)
	id := seedGym(t, f, "x@x.com", "abc123")
	f.store.failOn["delete academias"] = errors.New("unavailable")
	sc := f.screen(t, Academies)

	p, err := sc.RequestDelete(id)
	require.NoError(t, err)
	assert.Error(t, sc.Resolve(context.Background(), p.ID, true))
	assert.Len(t, sc.Mirror.Snapshot(), 1)
	assert.Equal(t, "Erro ao excluir academia: falha ao comunicar com o servidor, tente novamente", f.notice())
}

func TestToggleBlockedWritesSingleField(t *testing.T) {
	f := newFixture(t)
	id := seedGym(t, f, "x@x.com", "abc123")
	sc := f.screen(t, Academies)

	p, err := sc.RequestToggle(id, "blocked")
	require.NoError(t, err)
	assert.Equal(t, "Tem certeza que deseja bloquear esta academia?", p.Prompt)
	assert.Empty(t, f.store.Writes())

	require.NoError(t, sc.Resolve(context.Background(), p.ID, true))
	assert.Equal(t, []string{"update academias/" + id + " [blocked]"}, f.store.Writes())
	assert.Equal(t, true, sc.Mirror.Snapshot()[0].Fields["blocked"])
	assert.Equal(t, "Academia bloqueada com sucesso!", f.notice())

	p, err = sc.RequestToggle(id, "blocked")
	require.NoError(t, err)
	assert.Equal(t, "Tem certeza que deseja desbloquear esta academia?", p.Prompt)
	require.NoError(t, sc.Resolve(context.Background(), p.ID, true))
	assert.Equal(t, false, sc.Mirror.Snapshot()[0].Fields["blocked"])
	assert.Equal(t, "Academia desbloqueada com sucesso!", f.notice())
}

func TestTogglePayment(t *testing.T) {
	f := newFixture(t)
	id := seedGym(t, f, "x@x.com", "abc123")
	sc := f.screen(t, Academies)

	p, err := sc.RequestToggle(id, "payment")
	require.NoError(t, err)
	require.NoError(t, sc.Resolve(context.Background(), p.ID, true))
	assert.Equal(t, "Pagamento concluído com sucesso!", f.notice())

	p, err = sc.RequestToggle(id, "payment")
	require.NoError(t, err)
	require.NoError(t, sc.Resolve(context.Background(), p.ID, true))
	assert.Equal(t, "Pagamento pendente com sucesso!", f.notice())

	_, err = sc.RequestToggle(id, "name")
	assert.ErrorIs(t, err, ErrUnknownToggle)
	assert.ErrorIs(t, f.orch.Toggle(context.Background(), Articles, id, "blocked", true), ErrUnknownToggle)
}

func TestNotificationCreateStampsAndPushes(t *testing.T) {
	f := newFixture(t)
	gym := seedGym(t, f, "dono@iron.com", "abc123")
	sc := f.screen(t, Notifications)
	ctx := context.Background()

	require.NoError(t, sc.BeginCreate())
	assert.Equal(t, "2026-10-18", sc.Editor.View().Fields["date"])
	stageAll(t, sc.Editor, map[string]any{
		"title": "Aviso", "description": "Manutenção", "targetEmail": "dono@iron.com",
	})
	id, err := sc.Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Notificação criada com sucesso!", f.notice())

	doc, _ := f.store.Get(ctx, model.CollectionNotifications, id)
	n, err := model.Decode[model.Notification](id, doc.Fields)
	require.NoError(t, err)
	assert.True(t, n.CreatedAt.Equal(fixedNow))
	assert.Nil(t, n.UpdatedAt)

	require.Len(t, f.push.events, 1)
	ev := f.push.events[0]
	assert.Equal(t, id, ev.NotificationID)
	assert.Equal(t, gym, ev.AcademyID)
	assert.Equal(t, "Gym X", ev.AcademyName)

	require.NoError(t, sc.BeginEdit(id))
	require.NoError(t, sc.Editor.Stage("subtitle", "urgente"))
	_, err = sc.Commit(ctx)
	require.NoError(t, err)
	doc, _ = f.store.Get(ctx, model.CollectionNotifications, id)
	n, _ = model.Decode[model.Notification](id, doc.Fields)
	require.NotNil(t, n.UpdatedAt)
	assert.True(t, n.CreatedAt.Equal(fixedNow), "createdAt untouched by update")
	assert.Len(t, f.push.events, 1, "updates are not pushed")
}

func TestPushFailureDoesNotFailCommit(t *testing.T) {
	f := newFixture(t)
	f.push.err = errors.New("broker down")
	d := NewDraft("", map[string]any{"title": "t", "description": "d", "targetEmail": "a@b.com"})
	id, err := f.orch.Commit(context.Background(), Notifications, d, Create)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestArticleLifecycle(t *testing.T) {
	f := newFixture(t)
	sc := f.screen(t, Articles)

	require.NoError(t, sc.BeginCreate())
	assert.ErrorIs(t, sc.Editor.Stage(SecretField, "x"), ErrUnknownField)
	stageAll(t, sc.Editor, map[string]any{"title": "Creatina", "description": "Guia", "category": "supplementation"})
	id, err := sc.Commit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Artigo salvo com sucesso!", f.notice())
	assert.Equal(t, []string{"create artigos/ [category,description,title]"}, f.store.Writes())

	require.NoError(t, sc.BeginEdit(id))
	require.NoError(t, sc.Editor.Stage("category", "yoga"))
	_, err = sc.Commit(context.Background())
	assert.Error(t, err)
	assert.True(t, strings.HasPrefix(f.notice(), "Erro ao salvar artigo: "), f.notice())
}

func TestCommitWithoutDraft(t *testing.T) {
	f := newFixture(t)
	sc := f.screen(t, Articles)
	_, err := sc.Commit(context.Background())
	assert.ErrorIs(t, err, ErrNoDraft)
	assert.Equal(t, notice.Hidden, f.notices.State())
}

func TestCommitIgnoresCallerCancellation(t *testing.T) {
	f := newFixture(t)
	sc := f.screen(t, Articles)
	require.NoError(t, sc.BeginCreate())
	stageAll(t, sc.Editor, map[string]any{"title": "t", "description": "d"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := sc.Commit(ctx)
	require.NoError(t, err)
	assert.Len(t, sc.Mirror.Snapshot(), 1)
}

func TestReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{identity.ErrWeakSecret, "A senha deve ter pelo menos 6 caracteres."},
		{errors.Wrap(identity.ErrEmailExists, "create"), "Este email já está em uso."},
		{&model.ValidationError{Fields: map[string]string{"name": "name é obrigatório"}}, "name é obrigatório"},
		{errors.Wrap(store.ErrNotFound, "x"), "registro não encontrado"},
		{fmt.Errorf("dial tcp: refused"), "falha ao comunicar com o servidor, tente novamente"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Reason(tt.err))
	}
}
