package manifest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validManifest = `// swift-tools-version:5.9
apiVersion: digitalasset.com/v1
kind: Package
name: MyLib
platforms:
  - name: linux
products:
  - name: MyLib
    type: library
    targets: [MyLib]
dependencies:
  - url: https://example.com/org/foo.git
    requirement:
      range:
        lowerBound: 1.0.0
        upperBound: 2.0.0
  - id: mona.linkedlist
    requirement:
      from: 2.1.0
targets:
  - name: MyLib
    dependencies:
      - product: foo
        package: foo
traits:
  - name: extras
    enabledTraits: [metrics]
  - name: metrics
`

func TestLoadContents(t *testing.T) {
	m, err := LoadContents([]byte(validManifest), "/tmp/pkg/package.yaml")
	require.NoError(t, err)

	assert.Equal(t, "MyLib", m.DisplayName)
	assert.Equal(t, ToolsVersion{Major: 5, Minor: 9}, m.ToolsVersion)
	assert.Equal(t, "/tmp/pkg/package.yaml", m.AbsolutePath)
	require.Len(t, m.Dependencies, 2)

	d := m.Dependencies[0]
	assert.Equal(t, "https://example.com/org/foo.git", d.URL)
	require.NotNil(t, d.Requirement)
	assert.Equal(t, RequirementRange, d.Requirement.Kind)
	assert.Equal(t, "1.0.0", d.Requirement.Lower.String())
	assert.Equal(t, "2.0.0", d.Requirement.Upper.String())

	d = m.Dependencies[1]
	assert.Equal(t, "mona.linkedlist", d.ID)
	assert.Equal(t, RequirementUpToNextMajor, d.Requirement.Kind)
}

func TestLoadMissingHeader(t *testing.T) {
	_, err := LoadContents([]byte("apiVersion: digitalasset.com/v1\nkind: Package\nname: x\n"), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidManifest)
	assert.ErrorIs(t, err, ErrMissingToolsVersion)
}

func TestLoadToolsVersionTooNew(t *testing.T) {
	_, err := LoadContents([]byte("// swift-tools-version:99.0\nkind: Package\n"), "")
	var unsupported *UnsupportedToolsVersionError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, ToolsVersion{Major: 99}, unsupported.Declared)
	assert.Equal(t, CurrentToolsVersion, unsupported.Current)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	contents := "// swift-tools-version:5.9\napiVersion: digitalasset.com/v1\nkind: Package\nname: x\nbogus: true\n"
	_, err := LoadContents([]byte(contents), "")
	assert.ErrorIs(t, err, ErrInvalidManifest)
}

func TestLoadWrongKind(t *testing.T) {
	contents := "// swift-tools-version:5.9\napiVersion: digitalasset.com/v1\nkind: Pins\nname: x\n"
	_, err := LoadContents([]byte(contents), "")
	assert.ErrorIs(t, err, ErrInvalidManifest)
}

func TestValidateDuplicateProduct(t *testing.T) {
	contents := `// swift-tools-version:5.9
apiVersion: digitalasset.com/v1
kind: Package
name: x
products:
  - name: P
    type: library
  - name: P
    type: executable
`
	_, err := LoadContents([]byte(contents), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate product "P"`)
}

func TestValidateDependencyShape(t *testing.T) {
	contents := `// swift-tools-version:5.9
apiVersion: digitalasset.com/v1
kind: Package
name: x
dependencies:
  - url: https://example.com/a.git
    path: ../a
    requirement:
      exact: 1.0.0
`
	_, err := LoadContents([]byte(contents), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one of 'url', 'path', 'id'")
}

func TestValidateBinaryTarget(t *testing.T) {
	contents := `// swift-tools-version:5.9
apiVersion: digitalasset.com/v1
kind: Package
name: x
targets:
  - name: blob
    type: binary
    url: https://example.com/blob.zip
`
	_, err := LoadContents([]byte(contents), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must set 'checksum'")
}

func TestDependencyReference(t *testing.T) {
	d := Dependency{Path: "../sibling"}
	ref, err := d.Reference("/home/dev/pkg")
	require.NoError(t, err)
	assert.Equal(t, "/home/dev/sibling", ref.Location)
	assert.Equal(t, "sibling", ref.Identity.String())
}

func TestDeclaredTraitNamesIncludesImplicitDefault(t *testing.T) {
	m, err := LoadContents([]byte(validManifest), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"default", "extras", "metrics"}, m.DeclaredTraitNames())

	dflt, ok := m.TraitByName(DefaultTraitName)
	require.True(t, ok)
	assert.Empty(t, dflt.EnabledTraits)
}

func TestDeclaredTraitNamesEmptyWithoutTraits(t *testing.T) {
	m, err := LoadContents([]byte("// swift-tools-version:5.9\napiVersion: digitalasset.com/v1\nkind: Package\nname: x\n"), "")
	require.NoError(t, err)
	assert.Empty(t, m.DeclaredTraitNames())

	_, ok := m.TraitByName(DefaultTraitName)
	assert.False(t, ok)
}

func TestRequirementBounds(t *testing.T) {
	for _, tc := range []struct {
		req          Requirement
		lower, upper string
	}{
		{Exact("1.2.3"), "1.2.3", "1.2.4"},
		{Range("1.0.0", "2.0.0"), "1.0.0", "2.0.0"},
		{UpToNextMajor("1.2.3"), "1.2.3", "2.0.0"},
		{UpToNextMinor("1.2.3"), "1.2.3", "1.3.0"},
	} {
		lower, upper, err := tc.req.Bounds()
		require.NoError(t, err, tc.req.String())
		assert.Equal(t, tc.lower, lower.String())
		assert.Equal(t, tc.upper, upper.String())
	}

	_, _, err := Branch("main").Bounds()
	assert.Error(t, err)
	assert.False(t, Branch("main").IsVersionBased())
	assert.False(t, Revision("abc123").IsVersionBased())
}

func TestToolsVersionRendering(t *testing.T) {
	v := ToolsVersion{Major: 5, Minor: 9}
	assert.Equal(t, "5.9", v.Render(RoundingAutomatic))
	assert.Equal(t, "5.9", v.Render(RoundingMinor))
	assert.Equal(t, "5.9.0", v.Render(RoundingPatch))

	withPatch := ToolsVersion{Major: 5, Minor: 9, Patch: 2}
	assert.Equal(t, "5.9.2", withPatch.Render(RoundingAutomatic))
	assert.Equal(t, "5.9", withPatch.Render(RoundingMinor))
	assert.Equal(t, "5.9.2", withPatch.Render(RoundingPatch))
}

func TestSplitToolsVersionHeader(t *testing.T) {
	v, body, err := SplitToolsVersionHeader([]byte("// swift-tools-version:5.9.1\nname: x\n"))
	require.NoError(t, err)
	assert.Equal(t, ToolsVersion{Major: 5, Minor: 9, Patch: 1}, v)
	assert.Equal(t, "name: x\n", string(body))

	_, _, err = SplitToolsVersionHeader([]byte("name: x\n"))
	assert.ErrorIs(t, err, ErrMissingToolsVersion)
}
