package sourcecontrol

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"daml.com/x/wpm/pkg/identity"
	"github.com/Masterminds/semver/v3"
	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixtureRepo struct {
	dir  string
	repo *git.Repository
}

// newFixtureRepo builds a local repository usable as a remote URL.
func newFixtureRepo(t *testing.T) *fixtureRepo {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "utils")
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	return &fixtureRepo{dir: dir, repo: repo}
}

func (f *fixtureRepo) commit(t *testing.T, file, contents string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, file), []byte(contents), 0644))
	worktree, err := f.repo.Worktree()
	require.NoError(t, err)
	_, err = worktree.Add(file)
	require.NoError(t, err)
	hash, err := worktree.Commit("add "+file, &git.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return hash.String()
}

func (f *fixtureRepo) tag(t *testing.T, name, revision string) {
	t.Helper()
	_, err := f.repo.CreateTag(name, plumbing.NewHash(revision), nil)
	require.NoError(t, err)
}

func remoteRef(f *fixtureRepo) identity.PackageReference {
	return identity.NewRemoteSourceControlReference(f.dir)
}

func TestVersionsListsSemverTags(t *testing.T) {
	f := newFixtureRepo(t)
	first := f.commit(t, "a.txt", "one")
	second := f.commit(t, "b.txt", "two")
	f.tag(t, "v1.0.0", first)
	f.tag(t, "1.2.0", second)
	f.tag(t, "nightly", second)

	client := NewClient(t.TempDir())
	versions, err := client.Versions(context.Background(), remoteRef(f))
	require.NoError(t, err)

	var got []string
	for _, v := range versions {
		got = append(got, v.String())
	}
	assert.ElementsMatch(t, []string{"1.0.0", "1.2.0"}, got)
}

func TestResolveVersionAndBranch(t *testing.T) {
	f := newFixtureRepo(t)
	first := f.commit(t, "a.txt", "one")
	head := f.commit(t, "b.txt", "two")
	f.tag(t, "v1.0.0", first)

	client := NewClient(t.TempDir())
	ctx := context.Background()

	revision, err := client.ResolveVersion(ctx, remoteRef(f), semver.MustParse("1.0.0"))
	require.NoError(t, err)
	assert.Equal(t, first, revision)

	revision, err = client.ResolveBranch(ctx, remoteRef(f), "master")
	require.NoError(t, err)
	assert.Equal(t, head, revision)

	_, err = client.ResolveBranch(ctx, remoteRef(f), "nope")
	assert.ErrorContains(t, err, `no branch "nope"`)

	_, err = client.ResolveVersion(ctx, remoteRef(f), semver.MustParse("9.9.9"))
	assert.ErrorContains(t, err, "no tag for version 9.9.9")
}

func TestCheckoutMaterializesRevision(t *testing.T) {
	f := newFixtureRepo(t)
	pinned := f.commit(t, "a.txt", "pinned contents")
	f.commit(t, "a.txt", "newer contents")

	checkouts := t.TempDir()
	client := NewClient(checkouts)
	ref := remoteRef(f)

	dir, err := client.Checkout(context.Background(), ref, pinned)
	require.NoError(t, err)
	assert.Equal(t, client.CheckoutPath(ref), dir)

	contents, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "pinned contents", string(contents))

	// checking out again reuses the clone
	_, err = client.Checkout(context.Background(), ref, pinned)
	require.NoError(t, err)
}
