package versionresolver

import (
	"context"
	"errors"
	"testing"

	"daml.com/x/wpm/pkg/identity"
	"daml.com/x/wpm/pkg/manifest"
	"daml.com/x/wpm/pkg/pkggraph"
	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMetadata struct {
	versions map[identity.PackageIdentity][]string
	branches map[string]string
	fail     map[identity.PackageIdentity]error
	listed   []identity.PackageIdentity
}

func (f *fakeMetadata) Versions(_ context.Context, ref identity.PackageReference) ([]*semver.Version, error) {
	f.listed = append(f.listed, ref.Identity)
	if err, ok := f.fail[ref.Identity]; ok {
		return nil, err
	}
	var out []*semver.Version
	for _, s := range f.versions[ref.Identity] {
		out = append(out, semver.MustParse(s))
	}
	return out, nil
}

func (f *fakeMetadata) ResolveBranch(_ context.Context, ref identity.PackageReference, branch string) (string, error) {
	if err, ok := f.fail[ref.Identity]; ok {
		return "", err
	}
	rev, ok := f.branches[string(ref.Identity)+"@"+branch]
	if !ok {
		return "", errors.New("unknown branch")
	}
	return rev, nil
}

func constraint(declarer string, req manifest.Requirement) pkggraph.Constraint {
	return pkggraph.Constraint{Requirement: req, DeclaredBy: identity.PackageIdentity(declarer)}
}

func graphWith(constraints map[identity.PackageIdentity][]pkggraph.Constraint) *pkggraph.Graph {
	g := &pkggraph.Graph{
		Roots:       []identity.PackageIdentity{"root"},
		Nodes:       map[identity.PackageIdentity]*pkggraph.ResolvedNode{},
		Constraints: constraints,
	}
	g.Nodes["root"] = &pkggraph.ResolvedNode{
		PackageRef: identity.NewRootReference("root", "/ws/root"),
	}
	for id := range constraints {
		g.Nodes[id] = &pkggraph.ResolvedNode{
			PackageRef: identity.NewRemoteSourceControlReference("https://example.com/" + string(id) + ".git"),
		}
	}
	return g
}

func TestAssembleIntersectsWindows(t *testing.T) {
	set, err := Assemble("collections", []pkggraph.Constraint{
		constraint("root", manifest.UpToNextMajor("1.2.0")),
		constraint("utils", manifest.Range("1.4.0", "1.9.0")),
	})
	require.NoError(t, err)

	assert.Equal(t, "1.4.0", set.Lower.String())
	assert.Equal(t, "1.9.0", set.Upper.String())
	assert.True(t, set.Admits(semver.MustParse("1.8.2")))
	assert.False(t, set.Admits(semver.MustParse("1.9.0")))
	assert.False(t, set.Admits(semver.MustParse("1.3.0")))
}

func TestAssembleDisjointWindowsConflict(t *testing.T) {
	_, err := Assemble("collections", []pkggraph.Constraint{
		constraint("root", manifest.UpToNextMinor("1.2.0")),
		constraint("utils", manifest.UpToNextMajor("2.0.0")),
	})
	var conflict *ResolutionError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, identity.PackageIdentity("collections"), conflict.Identity)
}

func TestAssembleStructuralConflicts(t *testing.T) {
	// two different branches
	_, err := Assemble("tools", []pkggraph.Constraint{
		constraint("root", manifest.Branch("main")),
		constraint("utils", manifest.Branch("develop")),
	})
	var conflict *ResolutionError
	require.True(t, errors.As(err, &conflict))

	// a branch pin mixed with a version range
	_, err = Assemble("tools", []pkggraph.Constraint{
		constraint("root", manifest.Branch("main")),
		constraint("utils", manifest.UpToNextMajor("1.0.0")),
	})
	require.True(t, errors.As(err, &conflict))
}

func TestAssembleExactNarrows(t *testing.T) {
	set, err := Assemble("tools", []pkggraph.Constraint{
		constraint("root", manifest.Exact("1.4.2")),
		constraint("utils", manifest.UpToNextMajor("1.0.0")),
	})
	require.NoError(t, err)
	assert.True(t, set.Admits(semver.MustParse("1.4.2")))
	assert.False(t, set.Admits(semver.MustParse("1.4.3")))

	// exact outside the other window is structural, not a search failure
	_, err = Assemble("tools", []pkggraph.Constraint{
		constraint("root", manifest.Exact("2.1.0")),
		constraint("utils", manifest.UpToNextMinor("1.4.0")),
	})
	var conflict *ResolutionError
	require.True(t, errors.As(err, &conflict))
}

func TestResolvePicksHighestSatisfying(t *testing.T) {
	graph := graphWith(map[identity.PackageIdentity][]pkggraph.Constraint{
		"collections": {
			constraint("root", manifest.UpToNextMajor("1.2.0")),
			constraint("utils", manifest.Range("1.0.0", "1.9.0")),
		},
	})
	meta := &fakeMetadata{versions: map[identity.PackageIdentity][]string{
		"collections": {"1.2.0", "1.8.4", "1.9.0", "2.0.1"},
	}}

	solution, err := New(nil, meta, meta).Resolve(context.Background(), graph, nil)
	require.NoError(t, err)
	require.Contains(t, solution, identity.PackageIdentity("collections"))
	assert.Equal(t, "1.8.4", solution["collections"].Version.String())
}

func TestResolveBranchTakenStructurally(t *testing.T) {
	graph := graphWith(map[identity.PackageIdentity][]pkggraph.Constraint{
		"tools": {constraint("root", manifest.Branch("main"))},
	})
	meta := &fakeMetadata{branches: map[string]string{"tools@main": "deadbeef"}}

	solution, err := New(nil, meta, meta).Resolve(context.Background(), graph, nil)
	require.NoError(t, err)
	assert.Equal(t, "main", solution["tools"].Branch)
	assert.Equal(t, "deadbeef", solution["tools"].Revision)
	assert.Nil(t, solution["tools"].Version)
	// no version metadata is fetched for a branch pin
	assert.Empty(t, meta.listed)
}

func TestResolveUnsatisfiableExplanation(t *testing.T) {
	graph := graphWith(map[identity.PackageIdentity][]pkggraph.Constraint{
		"collections": {
			constraint("root", manifest.Range("1.0.0", "1.5.0")),
			constraint("utils", manifest.Range("1.2.0", "1.5.0")),
		},
	})
	meta := &fakeMetadata{versions: map[identity.PackageIdentity][]string{
		"collections": {"0.9.0", "1.5.0", "2.0.0"},
	}}

	_, err := New(nil, meta, meta).Resolve(context.Background(), graph, nil)
	var conflict *ResolutionError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t,
		"Dependencies could not be resolved because 'root' depends on 'collections' 1.0.0..<1.5.0"+
			" and 'utils' practically depends on 'collections' 1.2.0..<1.5.0"+
			", and no published version of 'collections' among [0.9.0, 1.5.0, 2.0.0] satisfies all of them.",
		conflict.Error())
}

func TestResolvePinsFastPath(t *testing.T) {
	graph := graphWith(map[identity.PackageIdentity][]pkggraph.Constraint{
		"collections": {constraint("root", manifest.UpToNextMajor("1.0.0"))},
		"tools":       {constraint("root", manifest.Branch("main"))},
	})
	meta := &fakeMetadata{}
	pins := []Pinned{
		{Identity: "collections", Version: semver.MustParse("1.3.0")},
		{Identity: "tools", Branch: "main", Revision: "deadbeef"},
	}

	solution, err := New(nil, meta, meta).Resolve(context.Background(), graph, pins)
	require.NoError(t, err)
	assert.Equal(t, "1.3.0", solution["collections"].Version.String())
	assert.Equal(t, "deadbeef", solution["tools"].Revision)
	// pins are authoritative: nothing was fetched
	assert.Empty(t, meta.listed)
}

func TestResolveStalePinsFallThrough(t *testing.T) {
	graph := graphWith(map[identity.PackageIdentity][]pkggraph.Constraint{
		"collections": {constraint("root", manifest.UpToNextMajor("2.0.0"))},
	})
	meta := &fakeMetadata{versions: map[identity.PackageIdentity][]string{
		"collections": {"2.1.0"},
	}}
	// pinned version no longer satisfies the widened requirement
	pins := []Pinned{{Identity: "collections", Version: semver.MustParse("1.3.0")}}

	solution, err := New(nil, meta, meta).Resolve(context.Background(), graph, pins)
	require.NoError(t, err)
	assert.Equal(t, "2.1.0", solution["collections"].Version.String())
	assert.NotEmpty(t, meta.listed)
}

func TestResolveRetrievalErrorsNameHostAndContinue(t *testing.T) {
	graph := graphWith(map[identity.PackageIdentity][]pkggraph.Constraint{
		"gone": {constraint("root", manifest.UpToNextMajor("1.0.0"))},
		"fine": {constraint("root", manifest.UpToNextMajor("1.0.0"))},
	})
	meta := &fakeMetadata{
		versions: map[identity.PackageIdentity][]string{"fine": {"1.1.0"}},
		fail:     map[identity.PackageIdentity]error{"gone": errors.New("connection refused")},
	}

	_, err := New(nil, meta, meta).Resolve(context.Background(), graph, nil)
	var retrieval *RetrievalError
	require.True(t, errors.As(err, &retrieval))
	assert.ErrorContains(t, err, `failed to fetch release metadata for package "gone" from example.com`)
	// the sibling package was still listed despite the failure
	assert.Contains(t, meta.listed, identity.PackageIdentity("fine"))
}
