package pkggraph

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"daml.com/x/wpm/pkg/diagnostics"
	"daml.com/x/wpm/pkg/identity"
	"daml.com/x/wpm/pkg/manifest"
	"daml.com/x/wpm/pkg/traits"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLoader struct {
	mu        sync.Mutex
	manifests map[identity.PackageIdentity]*manifest.Manifest
	loads     map[identity.PackageIdentity]int
	fail      map[identity.PackageIdentity]error
}

func newFakeLoader(manifests ...*manifest.Manifest) *fakeLoader {
	l := &fakeLoader{
		manifests: map[identity.PackageIdentity]*manifest.Manifest{},
		loads:     map[identity.PackageIdentity]int{},
		fail:      map[identity.PackageIdentity]error{},
	}
	for _, m := range manifests {
		l.manifests[identity.FromPath(filepath.Dir(m.AbsolutePath))] = m
	}
	return l
}

func (l *fakeLoader) Load(_ context.Context, ref identity.PackageReference, _ *manifest.Requirement) (*manifest.Manifest, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loads[ref.Identity]++
	if err, ok := l.fail[ref.Identity]; ok {
		return nil, err
	}
	m, ok := l.manifests[ref.Identity]
	if !ok {
		return nil, errors.New("unknown package")
	}
	return m, nil
}

func pkg(name string, deps ...manifest.Dependency) *manifest.Manifest {
	return &manifest.Manifest{
		AbsolutePath: filepath.Join("/ws", name, manifest.FileName),
		DisplayName:  name,
		Dependencies: deps,
	}
}

func urlDep(name string, mods ...func(*manifest.Dependency)) manifest.Dependency {
	d := manifest.Dependency{
		URL:         "https://example.com/" + name + ".git",
		Requirement: reqPtr(manifest.UpToNextMajor("1.0.0")),
	}
	for _, mod := range mods {
		mod(&d)
	}
	return d
}

func reqPtr(r manifest.Requirement) *manifest.Requirement { return &r }

func rootOf(m *manifest.Manifest) traits.Root {
	dir := filepath.Dir(m.AbsolutePath)
	return traits.Root{Ref: identity.NewRootReference(m.DisplayName, dir), Manifest: m}
}

func build(t *testing.T, loader ManifestLoader, opts Options, roots ...*manifest.Manifest) (*Graph, error) {
	t.Helper()
	b := NewBuilder(loader, opts)
	rs := make([]traits.Root, len(roots))
	for i, m := range roots {
		rs[i] = rootOf(m)
	}
	return b.Build(context.Background(), rs)
}

func TestBuildWalksTransitively(t *testing.T) {
	leaf := pkg("leaf")
	mid := pkg("mid", urlDep("leaf"))
	root := pkg("root", urlDep("mid"))

	graph, err := build(t, newFakeLoader(mid, leaf), Options{}, root)
	require.NoError(t, err)

	assert.Equal(t, []identity.PackageIdentity{"leaf", "mid", "root"}, graph.Identities())
	assert.Equal(t, []identity.PackageIdentity{"leaf", "mid"}, graph.NonRootIdentities())

	node, ok := graph.Node("root")
	require.True(t, ok)
	assert.Equal(t, []identity.PackageIdentity{"mid"}, node.Dependencies)

	// each edge with a requirement contributes one constraint, tagged with
	// the declaring package
	require.Len(t, graph.Constraints["mid"], 1)
	assert.Equal(t, identity.PackageIdentity("root"), graph.Constraints["mid"][0].DeclaredBy)
	require.Len(t, graph.Constraints["leaf"], 1)
	assert.Equal(t, identity.PackageIdentity("mid"), graph.Constraints["leaf"][0].DeclaredBy)
}

func TestBuildPrunesTraitGuardedEdge(t *testing.T) {
	heavy := pkg("heavy")
	root := pkg("root", urlDep("heavy", func(d *manifest.Dependency) {
		d.Condition = &manifest.Condition{Traits: []string{"extras"}}
	}))
	root.Traits = []manifest.Trait{{Name: "default"}, {Name: "extras"}}

	loader := newFakeLoader(heavy)

	// defaults: the guarded edge is excluded and the child never loaded
	graph, err := build(t, loader, Options{}, root)
	require.NoError(t, err)
	_, ok := graph.Node("heavy")
	assert.False(t, ok)
	assert.Zero(t, loader.loads["heavy"])

	// enabling the guard trait includes the edge
	graph, err = build(t, loader, Options{
		TraitConfiguration: traits.Configuration{EnabledTraits: []string{"extras"}},
	}, root)
	require.NoError(t, err)
	_, ok = graph.Node("heavy")
	assert.True(t, ok)
}

func TestBuildLoadsEachPackageOnce(t *testing.T) {
	// diamond: root -> a, b; a -> shared; b -> shared
	shared := pkg("shared")
	a := pkg("a", urlDep("shared"))
	b := pkg("b", urlDep("shared"))
	root := pkg("root", urlDep("a"), urlDep("b"))

	loader := newFakeLoader(a, b, shared)
	graph, err := build(t, loader, Options{}, root)
	require.NoError(t, err)

	assert.Equal(t, 1, loader.loads["shared"])
	require.Len(t, graph.Constraints["shared"], 2)
}

func TestBuildConflictingIdentityAtSameLevel(t *testing.T) {
	root := pkg("root",
		manifest.Dependency{URL: "https://example.com/utils.git", Requirement: reqPtr(manifest.UpToNextMajor("1.0.0"))},
		manifest.Dependency{URL: "https://forge.example.org/utils.git", Requirement: reqPtr(manifest.UpToNextMajor("2.0.0"))},
	)

	_, err := build(t, newFakeLoader(), Options{}, root)
	var conflict *ConflictingIdentityError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, identity.PackageIdentity("utils"), conflict.Identity)
}

func TestBuildConflictAcrossLevelsWarnsAndKeepsFirst(t *testing.T) {
	utils := pkg("utils")
	a := pkg("a", manifest.Dependency{URL: "https://forge.example.org/utils.git", Requirement: reqPtr(manifest.UpToNextMajor("1.0.0"))})
	root := pkg("root", urlDep("a"), urlDep("utils"))

	sink := &diagnostics.Collector{}
	graph, err := build(t, newFakeLoader(a, utils), Options{
		Resolver: identity.NewResolver(nil, identity.SwizzleIdentity),
		Sink:     sink,
	}, root)
	require.NoError(t, err)

	node, ok := graph.Node("utils")
	require.True(t, ok)
	assert.Equal(t, "https://example.com/utils.git", node.PackageRef.Location)

	warnings := sink.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, CodeConflictingIdentity, warnings[0].Code)
}

func TestBuildCycle(t *testing.T) {
	a := pkg("a", urlDep("b"))
	b := pkg("b", urlDep("a"))
	root := pkg("root", urlDep("a"))

	_, err := build(t, newFakeLoader(a, b), Options{}, root)
	var cycle *CycleError
	require.True(t, errors.As(err, &cycle))
	assert.Equal(t, "cyclic dependency declaration found: a -> b -> a", cycle.Error())
}

func TestBuildDuplicateProduct(t *testing.T) {
	a := pkg("a")
	a.Products = []manifest.Product{{Name: "Common", Type: manifest.ProductLibrary, Targets: []string{"Common"}}}
	b := pkg("b")
	b.Products = []manifest.Product{{Name: "Common", Type: manifest.ProductLibrary, Targets: []string{"Common"}}}
	root := pkg("root", urlDep("a"), urlDep("b"))

	_, err := build(t, newFakeLoader(a, b), Options{}, root)
	var dup *DuplicateProductError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "Common", dup.Product)
}

func TestBuildDuplicateTargetAcrossOrigins(t *testing.T) {
	reg := &manifest.Manifest{
		AbsolutePath: filepath.Join("/cache", "mona.utils", manifest.FileName),
		DisplayName:  "utils",
		Targets:      []manifest.Target{{Name: "Utils"}},
	}
	src := pkg("utils")
	src.Targets = []manifest.Target{{Name: "Utils"}}

	makeRoot := func() *manifest.Manifest {
		return pkg("root",
			manifest.Dependency{ID: "mona.utils", Requirement: reqPtr(manifest.UpToNextMajor("1.0.0"))},
			urlDep("utils"),
		)
	}
	loader := newFakeLoader(src)
	loader.manifests["mona.utils"] = reg

	// under 'disabled' the collision is fatal
	_, err := build(t, loader, Options{}, makeRoot())
	var dup *DuplicateTargetError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "Utils", dup.Target)
	assert.Equal(t, identity.PackageIdentity("mona.utils"), dup.RegistryPackage)

	// under 'identity' it degrades to a warning
	sink := &diagnostics.Collector{}
	_, err = build(t, loader, Options{
		Resolver: identity.NewResolver(nil, identity.SwizzleIdentity),
		Sink:     sink,
	}, makeRoot())
	require.NoError(t, err)
	require.Len(t, sink.Warnings(), 1)
	assert.Equal(t, CodeDuplicateTarget, sink.Warnings()[0].Code)
}

func TestBuildOverrideSubstitutesLocalPackage(t *testing.T) {
	local := pkg("utils")
	local.Traits = []manifest.Trait{{Name: "default"}}
	root := pkg("root", urlDep("utils"))

	loader := newFakeLoader()
	graph, err := build(t, loader, Options{
		Overrides: []traits.Root{rootOf(local)},
	}, root)
	require.NoError(t, err)

	node, ok := graph.Node("utils")
	require.True(t, ok)
	assert.Same(t, local, node.Manifest)
	assert.Equal(t, identity.KindRoot, node.PackageRef.Kind)
	assert.Zero(t, loader.loads["utils"])
}

func TestBuildProductPruning(t *testing.T) {
	unused := pkg("unused")
	used := pkg("used")
	root := pkg("root",
		urlDep("used", func(d *manifest.Dependency) { d.ProductFilter = []string{"Used"} }),
		urlDep("unused", func(d *manifest.Dependency) { d.ProductFilter = []string{"Unused"} }),
	)
	root.Targets = []manifest.Target{{
		Name:         "App",
		Dependencies: []manifest.TargetDependency{{Product: "Used", Package: "used"}},
	}}

	graph, err := build(t, newFakeLoader(used, unused), Options{PruneDependencies: true}, root)
	require.NoError(t, err)

	_, ok := graph.Node("used")
	assert.True(t, ok)
	_, ok = graph.Node("unused")
	assert.False(t, ok)
}

func TestBuildLoadErrorNamesPackage(t *testing.T) {
	root := pkg("root", urlDep("gone"))
	loader := newFakeLoader()
	loader.fail["gone"] = errors.New("connection refused")

	_, err := build(t, loader, Options{}, root)
	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, identity.PackageIdentity("gone"), loadErr.Ref.Identity)
	assert.ErrorContains(t, err, "connection refused")
}

func TestBuildUndeclaredTraitInTargetCondition(t *testing.T) {
	used := pkg("used")
	root := pkg("root", urlDep("used", func(d *manifest.Dependency) { d.ProductFilter = []string{"Used"} }))
	root.Traits = []manifest.Trait{{Name: "extras"}}
	root.Targets = []manifest.Target{{
		Name: "App",
		Dependencies: []manifest.TargetDependency{{
			Product:   "Used",
			Package:   "used",
			Condition: &manifest.Condition{Traits: []string{"no-such-trait"}},
		}},
	}}

	_, err := build(t, newFakeLoader(used), Options{PruneDependencies: true}, root)
	var traitErr *traits.UndeclaredTraitError
	require.True(t, errors.As(err, &traitErr))
	assert.Equal(t, "no-such-trait", traitErr.Trait)
	assert.Equal(t, "root", traitErr.Package)
}

func TestBuildReexpansionKeepsConstraintsSingular(t *testing.T) {
	leaf := pkg("leaf")
	shared := pkg("shared", urlDep("leaf"))
	shared.Traits = []manifest.Trait{{Name: "x"}}
	a := pkg("a", urlDep("shared"))
	deep := pkg("deep", urlDep("shared", func(d *manifest.Dependency) { d.EnabledTraits = []string{"x"} }))
	b := pkg("b", urlDep("deep"))
	root := pkg("root", urlDep("a"), urlDep("b"))

	graph, err := build(t, newFakeLoader(leaf, shared, a, deep, b), Options{}, root)
	require.NoError(t, err)

	// shared is expanded twice: once via a, again when deep grows its
	// trait set. The second pass must not restate its constraint on leaf.
	node, ok := graph.Node("shared")
	require.True(t, ok)
	assert.True(t, node.EnabledTraits.Contains("x"))
	require.Len(t, graph.Constraints["leaf"], 1)
	assert.Equal(t, identity.PackageIdentity("shared"), graph.Constraints["leaf"][0].DeclaredBy)
	assert.Len(t, graph.Constraints["shared"], 2)
}

func TestBuildSwizzleUnifiesDeclarationForms(t *testing.T) {
	netlib := pkg("acme.netlib")
	a := pkg("a", urlDep("netlib"))
	b := pkg("b", manifest.Dependency{ID: "acme.netlib", Requirement: reqPtr(manifest.UpToNextMajor("1.0.0"))})
	root := pkg("root", urlDep("a"), urlDep("b"))

	resolver := identity.NewResolver(nil, identity.SwizzleEnabled)
	require.NoError(t, resolver.AddEquivalence("https://example.com/netlib.git", "acme.netlib"))

	graph, err := build(t, newFakeLoader(netlib, a, b), Options{Resolver: resolver}, root)
	require.NoError(t, err)

	// the source-control declaration is rewritten to its registry form, so
	// both parents converge on one node
	node, ok := graph.Node("acme.netlib")
	require.True(t, ok)
	assert.Equal(t, identity.KindRegistry, node.PackageRef.Kind)
	_, ok = graph.Node("netlib")
	assert.False(t, ok)
	assert.Len(t, graph.Constraints["acme.netlib"], 2)
}
