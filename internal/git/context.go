package git

import (
	"path/filepath"

	"github.com/go-git/go-git/v5"
)

// Project describes the directory a session ran in
type Project struct {
	Path      string `json:"path" yaml:"path"`
	Name      string `json:"name" yaml:"name"`
	IsRepo    bool   `json:"isRepo" yaml:"is_repo"`
	Root      string `json:"root,omitempty" yaml:"root,omitempty"`
	Branch    string `json:"branch,omitempty" yaml:"branch,omitempty"`
	Commit    string `json:"commit,omitempty" yaml:"commit,omitempty"`
	RemoteURL string `json:"remoteUrl,omitempty" yaml:"remote_url,omitempty"`
}

// ResolveProject returns project information for dir. Outside a repository
// the name falls back to the directory's base name.
func ResolveProject(dir string) Project {
	if dir == "" {
		return Project{}
	}

	p := Project{Path: dir, Name: filepath.Base(filepath.Clean(dir))}

	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return p
	}
	p.IsRepo = true

	if wt, err := repo.Worktree(); err == nil {
		p.Root = wt.Filesystem.Root()
		p.Name = filepath.Base(p.Root)
	}

	// Empty repositories have no HEAD yet
	if head, err := repo.Head(); err == nil {
		p.Commit = head.Hash().String()
		if head.Name().IsBranch() {
			p.Branch = head.Name().Short()
		}
	}

	if remote, err := repo.Remote("origin"); err == nil {
		if urls := remote.Config().URLs; len(urls) > 0 {
			p.RemoteURL = urls[0]
		}
	}

	return p
}
