package winconst

import "testing"

func TestAllFolderIDsNonEmpty(t *testing.T) {
	if len(AllFolderIDs) == 0 {
		t.Fatal("expected at least one well-known folder ID")
	}
	seen := make(map[FolderID]bool, len(AllFolderIDs))
	for _, id := range AllFolderIDs {
		if seen[id] {
			t.Errorf("duplicate folder ID: %s", id)
		}
		seen[id] = true
	}
}

func TestExitCodesAreDistinct(t *testing.T) {
	codes := []int{
		ExitSuccess,
		ExitInstallUserExit,
		ExitSuccessRebootRequired,
		ExitSuccessRebootInitiated,
		ExitFailRebootRequired,
		ExitFailRebootInitiated,
	}
	seen := make(map[int]bool, len(codes))
	for _, c := range codes {
		if seen[c] {
			t.Errorf("duplicate exit code: %d", c)
		}
		seen[c] = true
	}
}
