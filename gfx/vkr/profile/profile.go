// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package profile stores device capability snapshots in kar archives,
// so device negotiation can be replayed on machines without the GPU.
package profile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/devblok/koructx/gfx/vkr"
	"github.com/devblok/koructx/utility/kar"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Version is the profile archive version written by Save.
const Version = 1

const (
	entryPrefix = "device/"
	entrySuffix = ".json"
)

// ErrVersion is returned when an archive was written by an unknown version.
var ErrVersion = errors.New("unsupported profile version")

func entryName(c vkr.DeviceCandidate) string {
	return fmt.Sprintf("%s%03d%s", entryPrefix, c.Index, entrySuffix)
}

// Save writes one JSON entry per candidate into a kar archive on w.
func Save(w io.Writer, author string, candidates []vkr.DeviceCandidate) error {
	builder, err := kar.NewBuilder(kar.Header{
		Author:      author,
		DateCreated: time.Now().Unix(),
		Version:     Version,
	})
	if err != nil {
		return err
	}
	defer builder.Close()

	for _, c := range candidates {
		data, err := json.Marshal(c)
		if err != nil {
			return errors.Wrapf(err, "encoding %s", c.Name)
		}
		if err := builder.Add(entryName(c), bytes.NewReader(data)); err != nil {
			return err
		}
	}

	if _, err := builder.WriteTo(w); err != nil {
		return errors.Wrap(err, "writing profile archive")
	}
	log.WithField("devices", len(candidates)).Debug("profile saved")
	return nil
}

// Load reads the candidates stored by Save, in the order they were saved.
func Load(r io.ReaderAt) ([]vkr.DeviceCandidate, error) {
	ar, err := kar.Open(r)
	if err != nil {
		return nil, err
	}
	if v := ar.Header().Version; v != Version {
		return nil, errors.Wrapf(ErrVersion, "version %d", v)
	}

	var candidates []vkr.DeviceCandidate
	for _, name := range ar.Names() {
		if !strings.HasPrefix(name, entryPrefix) || !strings.HasSuffix(name, entrySuffix) {
			continue
		}
		data, err := ar.ReadAll(name)
		if err != nil {
			return nil, err
		}
		var c vkr.DeviceCandidate
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, errors.Wrapf(err, "decoding %s", name)
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}
