package state_test

import (
	"context"
	"testing"

	"github.com/chainburn/chainburn/pkg/state"
)

func newTestStore(t *testing.T) *state.SQLiteStore {
	t.Helper()
	store, err := state.NewSQLiteStore(state.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestGetPersistedStateDefaultsToNone(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ps, err := store.GetPersistedState(ctx, "unknown-bundle")
	if err != nil {
		t.Fatalf("GetPersistedState: %v", err)
	}
	if ps.Resume != state.ResumeNone {
		t.Errorf("expected ResumeNone, got %s", ps.Resume)
	}
	if ps.RegistrationType != state.RegistrationNone {
		t.Errorf("expected RegistrationNone, got %s", ps.RegistrationType)
	}
}

func TestSaveAndGetPersistedStateRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	bundleID := "{bundle-1}"

	in := &state.PersistedState{
		BundleID:          bundleID,
		Resume:            state.ResumeReboot,
		ResumeCommandLine: "/burn.runonce",
		RegistrationType:  state.RegistrationInProgress,
	}
	if err := store.SavePersistedState(ctx, in); err != nil {
		t.Fatalf("SavePersistedState: %v", err)
	}

	out, err := store.GetPersistedState(ctx, bundleID)
	if err != nil {
		t.Fatalf("GetPersistedState: %v", err)
	}
	if out.Resume != state.ResumeReboot {
		t.Errorf("expected ResumeReboot, got %s", out.Resume)
	}
	if out.ResumeCommandLine != "/burn.runonce" {
		t.Errorf("unexpected resume command line: %q", out.ResumeCommandLine)
	}
	if out.RegistrationType != state.RegistrationInProgress {
		t.Errorf("expected RegistrationInProgress, got %s", out.RegistrationType)
	}

	// Upsert updates in place rather than duplicating the row.
	in.Resume = state.ResumeARP
	in.RegistrationType = state.RegistrationPresent
	if err := store.SavePersistedState(ctx, in); err != nil {
		t.Fatalf("SavePersistedState (update): %v", err)
	}
	out, err = store.GetPersistedState(ctx, bundleID)
	if err != nil {
		t.Fatalf("GetPersistedState: %v", err)
	}
	if out.Resume != state.ResumeARP {
		t.Errorf("expected ResumeARP after update, got %s", out.Resume)
	}
}

func TestClearResume(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	bundleID := "{bundle-2}"

	_ = store.SavePersistedState(ctx, &state.PersistedState{
		BundleID:          bundleID,
		Resume:            state.ResumeInvokeNow,
		ResumeCommandLine: "/burn.runonce",
		RegistrationType:  state.RegistrationPresent,
	})

	if err := store.ClearResume(ctx, bundleID); err != nil {
		t.Fatalf("ClearResume: %v", err)
	}

	ps, err := store.GetPersistedState(ctx, bundleID)
	if err != nil {
		t.Fatalf("GetPersistedState: %v", err)
	}
	if ps.Resume != state.ResumeNone {
		t.Errorf("expected ResumeNone after clear, got %s", ps.Resume)
	}
	if ps.ResumeCommandLine != "" {
		t.Errorf("expected empty command line after clear, got %q", ps.ResumeCommandLine)
	}
	// Registration type survives a resume clear.
	if ps.RegistrationType != state.RegistrationPresent {
		t.Errorf("expected RegistrationPresent to survive ClearResume, got %s", ps.RegistrationType)
	}
}

func TestListPendingResumes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_ = store.SavePersistedState(ctx, &state.PersistedState{
		BundleID:          "{bundle-a}",
		Resume:            state.ResumeReboot,
		ResumeCommandLine: "-burn.runonce -quiet",
	})
	_ = store.SavePersistedState(ctx, &state.PersistedState{
		BundleID: "{bundle-b}",
		Resume:   state.ResumeNone,
	})

	pending, err := store.ListPendingResumes(ctx)
	if err != nil {
		t.Fatalf("ListPendingResumes: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending resume, got %d", len(pending))
	}
	if pending[0].BundleID != "{bundle-a}" {
		t.Errorf("pending bundle = %s, want {bundle-a}", pending[0].BundleID)
	}
	if pending[0].ResumeCommandLine != "-burn.runonce -quiet" {
		t.Errorf("command line = %q", pending[0].ResumeCommandLine)
	}

	if err := store.ClearResume(ctx, "{bundle-a}"); err != nil {
		t.Fatalf("ClearResume: %v", err)
	}
	pending, err = store.ListPendingResumes(ctx)
	if err != nil {
		t.Fatalf("ListPendingResumes after clear: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending resumes after clear, got %d", len(pending))
	}
}

func TestLogPathHistoryOrdering(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	bundleID := "{bundle-3}"

	paths := []string{
		`C:\ProgramData\bundle_001_Burn.log`,
		`C:\ProgramData\bundle_002_Burn.log`,
		`C:\ProgramData\bundle_003_Burn.log`,
	}
	for _, p := range paths {
		if err := store.AppendLogPath(ctx, bundleID, p); err != nil {
			t.Fatalf("AppendLogPath(%s): %v", p, err)
		}
	}

	entries, err := store.ListLogPaths(ctx, bundleID)
	if err != nil {
		t.Fatalf("ListLogPaths: %v", err)
	}
	if len(entries) != len(paths) {
		t.Fatalf("expected %d entries, got %d", len(paths), len(entries))
	}
	for i, e := range entries {
		if e.Path != paths[i] {
			t.Errorf("entry %d: expected %q, got %q", i, paths[i], e.Path)
		}
	}
}

func TestRelatedBundleUpsertAndDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	bundleID := "{bundle-4}"

	rec := &state.RelatedBundleRecord{
		BundleID:     bundleID,
		ProviderKey:  "{UPGRADE-1}",
		Version:      "1.0.0",
		RelationType: state.RelationUpgrade,
	}
	if err := store.UpsertRelatedBundle(ctx, rec); err != nil {
		t.Fatalf("UpsertRelatedBundle: %v", err)
	}

	rec.Version = "1.1.0"
	if err := store.UpsertRelatedBundle(ctx, rec); err != nil {
		t.Fatalf("UpsertRelatedBundle (update): %v", err)
	}

	list, err := store.ListRelatedBundles(ctx, bundleID)
	if err != nil {
		t.Fatalf("ListRelatedBundles: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 related bundle after upsert-update, got %d", len(list))
	}
	if list[0].Version != "1.1.0" {
		t.Errorf("expected updated version 1.1.0, got %s", list[0].Version)
	}

	if err := store.DeleteRelatedBundle(ctx, bundleID, "{UPGRADE-1}"); err != nil {
		t.Fatalf("DeleteRelatedBundle: %v", err)
	}
	list, err = store.ListRelatedBundles(ctx, bundleID)
	if err != nil {
		t.Fatalf("ListRelatedBundles: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("expected 0 related bundles after delete, got %d", len(list))
	}
}

func TestHealthCheck(t *testing.T) {
	store := newTestStore(t)
	if err := store.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck: %v", err)
	}
}
