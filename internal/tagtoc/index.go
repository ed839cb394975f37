// Package tagtoc aggregates rendered notes by tag and writes the tag table of
// contents as Markdown and JSON.
package tagtoc

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/starford/keepmd/internal/models"
	"github.com/starford/keepmd/internal/tags"
)

// Bucket is the list of notes filed under one tag.
type Bucket struct {
	Supertag tags.SuperTag      `json:"supertag"`
	Notes    []models.BriefNote `json:"notes"`
}

// Index maps supertag -> tag name -> bucket. encoding/json writes map keys in
// sorted order, so the JSON snapshot is ordered without extra work.
type Index map[tags.SuperTag]map[string]*Bucket

// Group is one supertag with its tags in lexicographic order.
type Group struct {
	Supertag tags.SuperTag
	Tags     []TagEntry
}

// TagEntry is one tag and its bucket.
type TagEntry struct {
	Name   string
	Bucket *Bucket
}

// Build folds notes into a fresh Index. Each note's path is rewritten relative
// to tocDir on a copy; the input slice is not modified. An empty tocDir keeps
// paths as they are.
func Build(notes []models.BriefNote, tocDir string) (Index, error) {
	idx := make(Index)
	for _, n := range notes {
		rel, err := relativePath(n.NotePath, tocDir)
		if err != nil {
			return nil, err
		}
		n.NotePath = rel
		n.Tags = append([]string(nil), n.Tags...)
		idx = idx.Add(n)
	}
	return idx, nil
}

// Add files n under each of its tags, and under tags.Uncategorized when none of
// its tags is a Category tag. It returns idx for folding.
func (idx Index) Add(n models.BriefNote) Index {
	hasCategory := false
	for _, tag := range n.Tags {
		st := tags.Classify(tag)
		if st == tags.Category {
			hasCategory = true
		}
		b := idx.bucket(st, tag)
		b.Notes = append(b.Notes, n)
	}
	if !hasCategory {
		b := idx.bucket(tags.Category, tags.Uncategorized)
		b.Notes = append(b.Notes, n)
	}
	return idx
}

func (idx Index) bucket(st tags.SuperTag, tag string) *Bucket {
	byTag, ok := idx[st]
	if !ok {
		byTag = make(map[string]*Bucket)
		idx[st] = byTag
	}
	b, ok := byTag[tag]
	if !ok {
		b = &Bucket{Supertag: st, Notes: []models.BriefNote{}}
		byTag[tag] = b
	}
	return b
}

// Groups returns the index with supertags and tag names sorted
// lexicographically. Note order inside a bucket is insertion order.
func (idx Index) Groups() []Group {
	supertags := make([]string, 0, len(idx))
	for st := range idx {
		supertags = append(supertags, string(st))
	}
	sort.Strings(supertags)

	groups := make([]Group, 0, len(supertags))
	for _, st := range supertags {
		byTag := idx[tags.SuperTag(st)]
		names := make([]string, 0, len(byTag))
		for name := range byTag {
			names = append(names, name)
		}
		sort.Strings(names)

		g := Group{Supertag: tags.SuperTag(st), Tags: make([]TagEntry, 0, len(names))}
		for _, name := range names {
			g.Tags = append(g.Tags, TagEntry{Name: name, Bucket: byTag[name]})
		}
		groups = append(groups, g)
	}
	return groups
}

func relativePath(notePath, tocDir string) (string, error) {
	if tocDir == "" || notePath == "" {
		return filepath.ToSlash(notePath), nil
	}
	absNote, err := filepath.Abs(notePath)
	if err != nil {
		return "", fmt.Errorf("tagtoc: resolve %s: %w", notePath, err)
	}
	absDir, err := filepath.Abs(tocDir)
	if err != nil {
		return "", fmt.Errorf("tagtoc: resolve %s: %w", tocDir, err)
	}
	rel, err := filepath.Rel(absDir, absNote)
	if err != nil {
		return "", fmt.Errorf("tagtoc: relative path for %s: %w", notePath, err)
	}
	return filepath.ToSlash(rel), nil
}
