package claimstore

import (
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hpungsan/claimstore/internal/capture"
	"github.com/hpungsan/claimstore/internal/errors"
)

// Artifact is a file under the check-in directory.
type Artifact struct {
	Token     string    `json:"token"`
	Path      string    `json:"path"`
	Extension string    `json:"extension"`
	Claimed   bool      `json:"claimed"`
	Remote    bool      `json:"remote"`
	Job       bool      `json:"job"`
	Size      int64     `json:"size"`
	ModTime   time.Time `json:"mod_time"`
}

// Job is a pending archive job descriptor.
type Job struct {
	Token  string `json:"token"`
	Path   string `json:"path"`
	Source string `json:"source,omitempty"`
	Target string `json:"target,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Inventory lists the artifacts of a date partition (yyyyMMdd), or of every
// partition when partition is empty. Unknown files are skipped.
func (s *Store) Inventory(partition string) ([]Artifact, error) {
	checkIn, err := s.settings.CheckInDirectory()
	if err != nil {
		return nil, err
	}

	partitions, err := s.partitions(checkIn, partition)
	if err != nil {
		return nil, err
	}

	artifacts := []Artifact{}
	for _, p := range partitions {
		entries, err := os.ReadDir(filepath.Join(checkIn, p))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, errors.NewStorage(filepath.Join(checkIn, p), err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			a, ok := decodeArtifact(checkIn, p, e)
			if ok {
				artifacts = append(artifacts, a)
			}
		}
	}

	sort.Slice(artifacts, func(i, j int) bool {
		if artifacts[i].Token != artifacts[j].Token {
			return artifacts[i].Token < artifacts[j].Token
		}
		return artifacts[i].Extension < artifacts[j].Extension
	})
	return artifacts, nil
}

// PendingJobs lists every archive job descriptor under the check-in
// directory. Descriptors that fail to parse are reported with their error.
func (s *Store) PendingJobs() ([]Job, error) {
	artifacts, err := s.Inventory("")
	if err != nil {
		return nil, err
	}

	jobs := []Job{}
	for _, a := range artifacts {
		if !a.Job {
			continue
		}
		job := Job{Token: a.Token, Path: a.Path}
		ad, err := readJob(a.Path)
		if err != nil {
			job.Error = err.Error()
		} else {
			job.Source, job.Target = ad.Source, ad.Target
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func readJob(p string) (capture.ArchiveDescriptor, error) {
	f, err := os.Open(p)
	if err != nil {
		return capture.ArchiveDescriptor{}, err
	}
	defer f.Close()
	return capture.ReadArchiveDescriptor(f)
}

func (s *Store) partitions(checkIn, partition string) ([]string, error) {
	if partition != "" {
		if !IsPartition(partition) {
			return nil, errors.NewInvalidRequest("partition must be a yyyyMMdd date: " + partition)
		}
		return []string{partition}, nil
	}

	entries, err := os.ReadDir(checkIn)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.NewStorage(checkIn, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() && IsPartition(e.Name()) {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

func decodeArtifact(checkIn, partition string, e os.DirEntry) (Artifact, bool) {
	name := e.Name()
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	a := Artifact{
		Token:     path.Join(partition, base),
		Path:      filepath.Join(checkIn, partition, name),
		Extension: ext,
	}
	if strings.EqualFold(ext, ExtJob) {
		a.Job = true
	} else {
		claimed, remote, ok := ParseExtension(ext)
		if !ok {
			return Artifact{}, false
		}
		a.Claimed, a.Remote = claimed, remote
	}
	if info, err := e.Info(); err == nil {
		a.Size = info.Size()
		a.ModTime = info.ModTime()
	}
	return a, true
}
