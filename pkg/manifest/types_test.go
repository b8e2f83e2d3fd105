package manifest

import (
	"testing"

	"github.com/chainburn/chainburn/pkg/variables"
)

func TestToVariableValuesResolvesTypes(t *testing.T) {
	pm := &ParsedManifest{Bundle: BundleManifest{Variables: []VariableDecl{
		{Name: "InstallFolder", Type: "formatted", Value: `[ProgramFilesFolder]App`},
		{Name: "LaunchTarget", Type: "string", Value: `C:\App\app.exe`},
		{Name: "Retries", Type: "numeric", Value: "3"},
		{Name: "MinOS", Type: "version", Value: "v6.1"},
		{Name: "LicenseKey", Type: "string", Value: "secret", Hidden: true},
	}}}

	vals, err := pm.ToVariableValues()
	if err != nil {
		t.Fatalf("ToVariableValues: %v", err)
	}
	if len(vals) != 5 {
		t.Fatalf("expected 5 values, got %d", len(vals))
	}
	if vals[0].Value.Type != variables.TypeFormatted {
		t.Errorf("InstallFolder type = %v, want Formatted", vals[0].Value.Type)
	}
	if vals[2].Value.Type != variables.TypeNumeric || vals[2].Value.Numeric != 3 {
		t.Errorf("Retries = %+v, want Numeric 3", vals[2].Value)
	}
	if vals[3].Value.Type != variables.TypeVersion {
		t.Errorf("MinOS type = %v, want Version", vals[3].Value.Type)
	}
	if !vals[4].Hidden {
		t.Error("LicenseKey should carry the hidden flag through")
	}
}

func TestToVariableValuesRejectsBadNumeric(t *testing.T) {
	pm := &ParsedManifest{Bundle: BundleManifest{Variables: []VariableDecl{
		{Name: "Retries", Type: "numeric", Value: "many"},
	}}}
	if _, err := pm.ToVariableValues(); err == nil {
		t.Fatal("expected an error for a non-numeric value")
	}
}
