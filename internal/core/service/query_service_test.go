package service

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/querynotes/querynotes-api/internal/core/domain"
	"github.com/querynotes/querynotes-api/internal/core/ports"
	"github.com/querynotes/querynotes-api/internal/infrastructure/db/memory"
)

// ---------------------------------------------------------------------------
// Recording share cache stub
// ---------------------------------------------------------------------------

type stubShareCache struct {
	mu          sync.Mutex
	entries     map[string]*domain.PublicQuery
	invalidated []string
	getErr      error // if set, Get returns this error
}

func newStubShareCache() *stubShareCache {
	return &stubShareCache{entries: make(map[string]*domain.PublicQuery)}
}

func (c *stubShareCache) Get(_ context.Context, token string) (*domain.PublicQuery, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	v, ok := c.entries[token]
	return v, ok, nil
}

func (c *stubShareCache) Set(_ context.Context, token string, view *domain.PublicQuery, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[token] = view
	return nil
}

func (c *stubShareCache) Invalidate(_ context.Context, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, token)
	c.invalidated = append(c.invalidated, token)
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newTestQueryService() (*QueryService, *stubShareCache) {
	cache := newStubShareCache()
	return NewQueryService(memory.NewQueryRepository(), cache, time.Minute, zerolog.Nop()), cache
}

func mustCreate(t *testing.T, svc *QueryService, owner string, in ports.QueryInput) *domain.Query {
	t.Helper()
	q, err := svc.Create(context.Background(), owner, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return q
}

func tokenSequence(tokens ...string) func() (string, error) {
	i := 0
	return func() (string, error) {
		tok := tokens[i%len(tokens)]
		i++
		return tok, nil
	}
}

var sampleInput = ports.QueryInput{
	Title: "  Active users ",
	Text:  "  SELECT * FROM users WHERE active",
	Tags:  []string{" SQL", "users", "sql", ""},
}

// ---------------------------------------------------------------------------
// Create / Get / List
// ---------------------------------------------------------------------------

func TestQueryService_Create_NormalizesInput(t *testing.T) {
	svc, _ := newTestQueryService()

	q := mustCreate(t, svc, "alice", sampleInput)

	if q.ID == "" || q.OwnerID != "alice" {
		t.Fatalf("unexpected id/owner: %+v", q)
	}
	if q.Title != "Active users" {
		t.Fatalf("expected trimmed title, got %q", q.Title)
	}
	if q.Text != sampleInput.Text {
		t.Fatalf("expected text unchanged, got %q", q.Text)
	}
	if want := []string{"sql", "users"}; !reflect.DeepEqual(q.Tags, want) {
		t.Fatalf("expected tags %v, got %v", want, q.Tags)
	}
	if q.IsPublic || q.ShareToken != "" {
		t.Fatalf("new query must be private: %+v", q)
	}
	if q.CreatedAt.IsZero() {
		t.Fatalf("expected CreatedAt to be set")
	}
}

func TestQueryService_Create_Validation(t *testing.T) {
	svc, _ := newTestQueryService()

	cases := []ports.QueryInput{
		{Title: "", Text: "select 1"},
		{Title: "   ", Text: "select 1"},
		{Title: "t", Text: ""},
		{Title: "t", Text: " \n\t"},
	}
	for _, in := range cases {
		if _, err := svc.Create(context.Background(), "alice", in); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("Create(%+v): expected ErrValidation, got %v", in, err)
		}
	}
}

func TestQueryService_GetRoundTrip(t *testing.T) {
	svc, _ := newTestQueryService()
	created := mustCreate(t, svc, "alice", sampleInput)

	got, err := svc.Get(context.Background(), "alice", created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !reflect.DeepEqual(got, created) {
		t.Fatalf("round trip mismatch:\n got  %+v\n want %+v", got, created)
	}
}

func TestQueryService_List_NewestFirst(t *testing.T) {
	svc, _ := newTestQueryService()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	first := mustCreate(t, svc, "alice", ports.QueryInput{Title: "first", Text: "1"})
	second := mustCreate(t, svc, "alice", ports.QueryInput{Title: "second", Text: "2"})
	third := mustCreate(t, svc, "alice", ports.QueryInput{Title: "third", Text: "3"})

	list, err := svc.List(context.Background(), "alice")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 queries, got %d", len(list))
	}
	if list[0].ID != third.ID || list[1].ID != second.ID || list[2].ID != first.ID {
		t.Fatalf("unexpected order: %s, %s, %s", list[0].Title, list[1].Title, list[2].Title)
	}
}

func TestQueryService_List_EmptyIsNotNil(t *testing.T) {
	svc, _ := newTestQueryService()

	list, err := svc.List(context.Background(), "nobody")
	if err != nil || list == nil || len(list) != 0 {
		t.Fatalf("expected empty non-nil list, got %v, %v", list, err)
	}
	tags, err := svc.ListTags(context.Background(), "nobody")
	if err != nil || tags == nil || len(tags) != 0 {
		t.Fatalf("expected empty non-nil tags, got %v, %v", tags, err)
	}
}

func TestQueryService_ListTags_DistinctSorted(t *testing.T) {
	svc, _ := newTestQueryService()
	mustCreate(t, svc, "alice", ports.QueryInput{Title: "a", Text: "1", Tags: []string{"users", "SQL"}})
	mustCreate(t, svc, "alice", ports.QueryInput{Title: "b", Text: "2", Tags: []string{"billing", "sql"}})
	mustCreate(t, svc, "bob", ports.QueryInput{Title: "c", Text: "3", Tags: []string{"secret"}})

	tags, err := svc.ListTags(context.Background(), "alice")
	if err != nil {
		t.Fatalf("ListTags: %v", err)
	}
	if want := []string{"billing", "sql", "users"}; !reflect.DeepEqual(tags, want) {
		t.Fatalf("expected %v, got %v", want, tags)
	}
}

// ---------------------------------------------------------------------------
// Ownership
// ---------------------------------------------------------------------------

func TestQueryService_OtherOwnersSeeNotFound(t *testing.T) {
	svc, _ := newTestQueryService()
	ctx := context.Background()
	q := mustCreate(t, svc, "alice", sampleInput)

	if _, err := svc.Get(ctx, "bob", q.ID); !errors.Is(err, domain.ErrQueryNotFound) {
		t.Fatalf("Get: expected ErrQueryNotFound, got %v", err)
	}
	if _, err := svc.Update(ctx, "bob", q.ID, ports.QueryInput{Title: "x", Text: "y"}); !errors.Is(err, domain.ErrQueryNotFound) {
		t.Fatalf("Update: expected ErrQueryNotFound, got %v", err)
	}
	if _, err := svc.Share(ctx, "bob", q.ID); !errors.Is(err, domain.ErrQueryNotFound) {
		t.Fatalf("Share: expected ErrQueryNotFound, got %v", err)
	}
	if err := svc.Delete(ctx, "bob", q.ID); !errors.Is(err, domain.ErrQueryNotFound) {
		t.Fatalf("Delete: expected ErrQueryNotFound, got %v", err)
	}
	if list, _ := svc.List(ctx, "bob"); len(list) != 0 {
		t.Fatalf("bob must not list alice's queries, got %d", len(list))
	}

	got, err := svc.Get(ctx, "alice", q.ID)
	if err != nil {
		t.Fatalf("alice lost her query: %v", err)
	}
	if !reflect.DeepEqual(got, q) {
		t.Fatalf("query changed by another owner:\n got  %+v\n want %+v", got, q)
	}
}

func TestQueryService_UnknownIDIsNotFound(t *testing.T) {
	svc, _ := newTestQueryService()

	if _, err := svc.Get(context.Background(), "alice", "does-not-exist"); !errors.Is(err, domain.ErrQueryNotFound) {
		t.Fatalf("expected ErrQueryNotFound, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Update / Delete
// ---------------------------------------------------------------------------

func TestQueryService_Update_KeepsOwnerCreatedAtAndShareState(t *testing.T) {
	svc, cache := newTestQueryService()
	ctx := context.Background()
	q := mustCreate(t, svc, "alice", sampleInput)
	token, err := svc.Share(ctx, "alice", q.ID)
	if err != nil {
		t.Fatalf("Share: %v", err)
	}
	if _, err := svc.GetPublic(ctx, token); err != nil {
		t.Fatalf("GetPublic: %v", err)
	}

	updated, err := svc.Update(ctx, "alice", q.ID, ports.QueryInput{Title: "Renamed", Text: "select 2", Tags: []string{"New"}})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Title != "Renamed" || updated.Text != "select 2" || !reflect.DeepEqual(updated.Tags, []string{"new"}) {
		t.Fatalf("fields not updated: %+v", updated)
	}
	if updated.OwnerID != "alice" || !updated.CreatedAt.Equal(q.CreatedAt) {
		t.Fatalf("owner or createdAt changed: %+v", updated)
	}
	if !updated.IsPublic || updated.ShareToken != token {
		t.Fatalf("share state changed: %+v", updated)
	}
	if len(cache.invalidated) != 1 || cache.invalidated[0] != token {
		t.Fatalf("expected cache entry %q invalidated, got %v", token, cache.invalidated)
	}

	view, err := svc.GetPublic(ctx, token)
	if err != nil {
		t.Fatalf("GetPublic after update: %v", err)
	}
	if view.Title != "Renamed" {
		t.Fatalf("public view is stale: %+v", view)
	}
}

func TestQueryService_Update_Validation(t *testing.T) {
	svc, _ := newTestQueryService()
	q := mustCreate(t, svc, "alice", sampleInput)

	if _, err := svc.Update(context.Background(), "alice", q.ID, ports.QueryInput{Title: " ", Text: "x"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestQueryService_Delete(t *testing.T) {
	svc, cache := newTestQueryService()
	ctx := context.Background()
	q := mustCreate(t, svc, "alice", sampleInput)
	token, _ := svc.Share(ctx, "alice", q.ID)

	if err := svc.Delete(ctx, "alice", q.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(ctx, "alice", q.ID); !errors.Is(err, domain.ErrQueryNotFound) {
		t.Fatalf("expected ErrQueryNotFound after delete, got %v", err)
	}
	if _, err := svc.GetPublic(ctx, token); !errors.Is(err, domain.ErrQueryNotFound) {
		t.Fatalf("share link must die with the query, got %v", err)
	}
	if len(cache.invalidated) != 1 {
		t.Fatalf("expected one invalidation, got %v", cache.invalidated)
	}
	if err := svc.Delete(ctx, "alice", q.ID); !errors.Is(err, domain.ErrQueryNotFound) {
		t.Fatalf("second delete: expected ErrQueryNotFound, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Share / GetPublic
// ---------------------------------------------------------------------------

func TestQueryService_Share_Idempotent(t *testing.T) {
	svc, _ := newTestQueryService()
	ctx := context.Background()
	q := mustCreate(t, svc, "alice", sampleInput)

	first, err := svc.Share(ctx, "alice", q.ID)
	if err != nil {
		t.Fatalf("Share: %v", err)
	}
	if len(first) != 32 {
		t.Fatalf("expected 32 hex chars, got %q", first)
	}
	second, err := svc.Share(ctx, "alice", q.ID)
	if err != nil {
		t.Fatalf("second Share: %v", err)
	}
	if first != second {
		t.Fatalf("share token changed: %q then %q", first, second)
	}

	got, _ := svc.Get(ctx, "alice", q.ID)
	if !got.IsPublic || got.ShareToken != first {
		t.Fatalf("query not marked public: %+v", got)
	}
}

func TestQueryService_Share_ConcurrentCallsAgree(t *testing.T) {
	svc, _ := newTestQueryService()
	q := mustCreate(t, svc, "alice", sampleInput)

	const n = 16
	tokens := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := svc.Share(context.Background(), "alice", q.ID)
			if err != nil {
				t.Errorf("Share: %v", err)
			}
			tokens[i] = tok
		}(i)
	}
	wg.Wait()

	for _, tok := range tokens {
		if tok != tokens[0] {
			t.Fatalf("concurrent shares returned different tokens: %v", tokens)
		}
	}
}

func TestQueryService_Share_RetriesOnCollision(t *testing.T) {
	svc, _ := newTestQueryService()
	ctx := context.Background()
	a := mustCreate(t, svc, "alice", sampleInput)
	b := mustCreate(t, svc, "alice", sampleInput)

	svc.newToken = tokenSequence("dup")
	if _, err := svc.Share(ctx, "alice", a.ID); err != nil {
		t.Fatalf("Share a: %v", err)
	}

	svc.newToken = tokenSequence("dup", "fresh")
	tok, err := svc.Share(ctx, "alice", b.ID)
	if err != nil {
		t.Fatalf("Share b: %v", err)
	}
	if tok != "fresh" {
		t.Fatalf("expected retry to mint %q, got %q", "fresh", tok)
	}
}

func TestQueryService_Share_GivesUpAfterRepeatedCollisions(t *testing.T) {
	svc, _ := newTestQueryService()
	ctx := context.Background()
	a := mustCreate(t, svc, "alice", sampleInput)
	b := mustCreate(t, svc, "alice", sampleInput)

	svc.newToken = tokenSequence("dup")
	_, _ = svc.Share(ctx, "alice", a.ID)

	if _, err := svc.Share(ctx, "alice", b.ID); !errors.Is(err, domain.ErrShareTokenTaken) {
		t.Fatalf("expected ErrShareTokenTaken, got %v", err)
	}
	got, _ := svc.Get(ctx, "alice", b.ID)
	if got.IsPublic {
		t.Fatalf("query must stay private after a failed share")
	}
}

func TestQueryService_GetPublic_View(t *testing.T) {
	svc, _ := newTestQueryService()
	ctx := context.Background()
	q := mustCreate(t, svc, "alice", sampleInput)
	token, _ := svc.Share(ctx, "alice", q.ID)

	view, err := svc.GetPublic(ctx, token)
	if err != nil {
		t.Fatalf("GetPublic: %v", err)
	}
	want := &domain.PublicQuery{Title: q.Title, Text: q.Text, Tags: q.Tags, CreatedAt: q.CreatedAt}
	if !reflect.DeepEqual(view, want) {
		t.Fatalf("unexpected view:\n got  %+v\n want %+v", view, want)
	}
}

func TestQueryService_GetPublic_UnknownToken(t *testing.T) {
	svc, _ := newTestQueryService()
	mustCreate(t, svc, "alice", sampleInput)

	for _, tok := range []string{"", "nope"} {
		if _, err := svc.GetPublic(context.Background(), tok); !errors.Is(err, domain.ErrQueryNotFound) {
			t.Fatalf("GetPublic(%q): expected ErrQueryNotFound, got %v", tok, err)
		}
	}
}

func TestQueryService_GetPublic_ServesFromCache(t *testing.T) {
	svc, cache := newTestQueryService()
	ctx := context.Background()
	q := mustCreate(t, svc, "alice", sampleInput)
	token, _ := svc.Share(ctx, "alice", q.ID)

	if _, err := svc.GetPublic(ctx, token); err != nil {
		t.Fatalf("GetPublic: %v", err)
	}
	if _, ok := cache.entries[token]; !ok {
		t.Fatalf("expected view to be cached")
	}

	cache.entries[token] = &domain.PublicQuery{Title: "from cache"}
	view, err := svc.GetPublic(ctx, token)
	if err != nil {
		t.Fatalf("GetPublic: %v", err)
	}
	if view.Title != "from cache" {
		t.Fatalf("expected cached view, got %+v", view)
	}
}

func TestQueryService_GetPublic_CacheErrorFallsBackToStore(t *testing.T) {
	svc, cache := newTestQueryService()
	ctx := context.Background()
	q := mustCreate(t, svc, "alice", sampleInput)
	token, _ := svc.Share(ctx, "alice", q.ID)
	cache.getErr = errors.New("redis: connection refused")

	view, err := svc.GetPublic(ctx, token)
	if err != nil {
		t.Fatalf("GetPublic: %v", err)
	}
	if view.Title != q.Title {
		t.Fatalf("unexpected view: %+v", view)
	}
}

func TestQueryService_WithoutCache(t *testing.T) {
	svc := NewQueryService(memory.NewQueryRepository(), nil, 0, zerolog.Nop())
	ctx := context.Background()
	q := mustCreate(t, svc, "alice", sampleInput)
	token, _ := svc.Share(ctx, "alice", q.ID)

	if _, err := svc.GetPublic(ctx, token); err != nil {
		t.Fatalf("GetPublic: %v", err)
	}
	if _, err := svc.Update(ctx, "alice", q.ID, ports.QueryInput{Title: "t", Text: "x"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := svc.Delete(ctx, "alice", q.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

// pausingRepo stops the first FindByShareToken after it has read the row,
// so a write can slip in before GetPublic fills the cache.
type pausingRepo struct {
	ports.QueryRepository
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func newPausingRepo() *pausingRepo {
	return &pausingRepo{
		QueryRepository: memory.NewQueryRepository(),
		read:            make(chan struct{}),
		release:         make(chan struct{}),
	}
}

func (r *pausingRepo) FindByShareToken(ctx context.Context, token string) (*domain.Query, error) {
	q, err := r.QueryRepository.FindByShareToken(ctx, token)
	r.once.Do(func() {
		close(r.read)
		<-r.release
	})
	return q, err
}

func TestQueryService_GetPublic_DeleteDuringCacheFill(t *testing.T) {
	repo := newPausingRepo()
	cache := newStubShareCache()
	svc := NewQueryService(repo, cache, time.Minute, zerolog.Nop())
	ctx := context.Background()
	q := mustCreate(t, svc, "alice", sampleInput)
	token, _ := svc.Share(ctx, "alice", q.ID)

	done := make(chan error, 1)
	go func() {
		_, err := svc.GetPublic(ctx, token)
		done <- err
	}()

	<-repo.read
	if err := svc.Delete(ctx, "alice", q.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	close(repo.release)
	if err := <-done; err != nil {
		t.Fatalf("in-flight GetPublic: %v", err)
	}

	if _, ok := cache.entries[token]; ok {
		t.Fatalf("deleted query left in the share cache")
	}
	if _, err := svc.GetPublic(ctx, token); !errors.Is(err, domain.ErrQueryNotFound) {
		t.Fatalf("expected ErrQueryNotFound after delete, got %v", err)
	}
}

func TestQueryService_GetPublic_UpdateDuringCacheFill(t *testing.T) {
	repo := newPausingRepo()
	cache := newStubShareCache()
	svc := NewQueryService(repo, cache, time.Minute, zerolog.Nop())
	ctx := context.Background()
	q := mustCreate(t, svc, "alice", sampleInput)
	token, _ := svc.Share(ctx, "alice", q.ID)

	done := make(chan error, 1)
	go func() {
		_, err := svc.GetPublic(ctx, token)
		done <- err
	}()

	<-repo.read
	if _, err := svc.Update(ctx, "alice", q.ID, ports.QueryInput{Title: "Renamed", Text: "select 2"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	close(repo.release)
	<-done

	view, err := svc.GetPublic(ctx, token)
	if err != nil {
		t.Fatalf("GetPublic: %v", err)
	}
	if view.Title != "Renamed" || view.Text != "select 2" {
		t.Fatalf("stale view served after update: %+v", view)
	}
}

func TestQueryService_RejectsNUL(t *testing.T) {
	svc, _ := newTestQueryService()
	q := mustCreate(t, svc, "alice", sampleInput)

	cases := []ports.QueryInput{
		{Title: "a\x00b", Text: "select 1"},
		{Title: "t", Text: "select\x00 1"},
		{Title: "t", Text: "select 1", Tags: []string{"s\x00ql"}},
	}
	for _, in := range cases {
		if _, err := svc.Create(context.Background(), "alice", in); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("Create(%q): expected ErrValidation, got %v", in, err)
		}
		if _, err := svc.Update(context.Background(), "alice", q.ID, in); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("Update(%q): expected ErrValidation, got %v", in, err)
		}
	}
}
