// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/devblok/koructx/utility/kar"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/mmap"
)

var (
	author   = flag.String("author", "", "Set the author of the package when compressing, defaults to the current user")
	version  = flag.Int64("version", 1, "Archive version number to create it with")
	extract  = flag.String("e", "", "Extract the archive given into the destination directory")
	compress = flag.String("c", "", "Compress the given file/folder")
	list     = flag.String("l", "", "List the contents of the archive given")
	dstFile  = flag.String("f", "out.kar", "Destination file, or directory when extracting")
	silent   = flag.Bool("s", false, "Silent")
)

func main() {
	flag.Parse()

	if *silent {
		log.SetLevel(log.WarnLevel)
	}

	var ops int
	for _, op := range []string{*extract, *compress, *list} {
		if op != "" {
			ops++
		}
	}

	var err error
	switch {
	case ops > 1:
		err = errors.New("only one operation at a time")
	case *compress != "":
		err = compressFiles(*compress, *dstFile)
	case *extract != "":
		err = extractFiles(*extract, *dstFile)
	case *list != "":
		err = listFiles(*list)
	default:
		flag.PrintDefaults()
	}

	if err != nil {
		log.Fatal(err)
	}
}

func currentUserName() string {
	if *author != "" {
		return *author
	}
	u, err := user.Current()
	if err != nil {
		return "unknown"
	}
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

func compressFiles(src, dst string) error {
	if _, err := os.Stat(dst); err == nil {
		return errors.New("destination file exists, will not overwrite")
	}

	var filesToCompress []string
	err := filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		filesToCompress = append(filesToCompress, path)
		return nil
	})
	if err != nil {
		return err
	}

	karBuilder, err := kar.NewBuilder(kar.Header{
		Author:      currentUserName(),
		DateCreated: time.Now().Unix(),
		Version:     *version,
	})
	if err != nil {
		return err
	}
	defer karBuilder.Close()

	for _, ftc := range filesToCompress {
		if err := addFile(karBuilder, ftc); err != nil {
			return err
		}
		log.WithField("file", ftc).Debug("added")
	}

	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	n, err := karBuilder.WriteTo(f)
	if err != nil {
		f.Close()
		return err
	}
	log.WithFields(log.Fields{
		"files": karBuilder.Len(),
		"bytes": n,
	}).Info("archive written")
	return f.Close()
}

func addFile(b *kar.Builder, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return b.Add(filepath.ToSlash(path), f)
}

func openArchive(path string) (*kar.Archive, io.Closer, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, nil, err
	}
	archive, err := kar.Open(r)
	if err != nil {
		r.Close()
		return nil, nil, errors.Wrap(err, path)
	}
	return archive, r, nil
}

func listFiles(path string) error {
	archive, closer, err := openArchive(path)
	if err != nil {
		return err
	}
	defer closer.Close()

	header := archive.Header()
	fmt.Printf("author: %s\tversion: %d\tcreated: %s\n",
		header.Author, header.Version, time.Unix(header.DateCreated, 0).Format(time.RFC3339))
	for _, e := range header.Index {
		fmt.Printf("%10d %10d  %s\n", e.Size, e.CompressedSize, e.Name)
	}
	return nil
}

func extractFiles(path, dstDir string) error {
	archive, closer, err := openArchive(path)
	if err != nil {
		return err
	}
	defer closer.Close()

	for _, name := range archive.Names() {
		if err := extractFile(archive, name, dstDir); err != nil {
			return err
		}
		log.WithField("file", name).Debug("extracted")
	}
	return nil
}

func extractFile(archive *kar.Archive, name, dstDir string) error {
	target := filepath.Join(dstDir, filepath.FromSlash(name))
	if rel, err := filepath.Rel(dstDir, target); err != nil || strings.HasPrefix(rel, "..") {
		return errors.Errorf("%s escapes the destination directory", name)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	r, err := archive.Open(name)
	if err != nil {
		return err
	}

	f, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return errors.Wrapf(err, "extracting %s", name)
	}
	return f.Close()
}
