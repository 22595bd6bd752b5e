// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Command kar builds, lists and extracts kar asset archives.
//
//	kar build [-f] -o assets.kar [-ext .spv,.png] dir
//	kar list assets.kar
//	kar extract [-C dir] assets.kar [name...]
package main

import (
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/overlaygfx/utility/kar"
)

func currentUser() string {
	u, err := user.Current()
	if err != nil {
		return "unknown"
	}
	return u.Username
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: kar build|list|extract [flags] args")
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	var err error
	switch os.Args[1] {
	case "build":
		err = build(os.Args[2:])
	case "list":
		err = list(os.Args[2:])
	case "extract":
		err = extract(os.Args[2:])
	default:
		usage()
	}
	if err != nil {
		log.WithError(err).Fatal(os.Args[1])
	}
}

func build(args []string) error {
	flags := flag.NewFlagSet("build", flag.ExitOnError)
	output := flags.String("o", "assets.kar", "Archive to write")
	author := flags.String("author", currentUser(), "Author recorded in the header")
	version := flags.Int64("version", 1, "Archive version number to create it with")
	force := flags.Bool("f", false, "Overwrite the archive if it exists")
	exts := flags.String("ext", "", "Comma separated extensions to include, all files when empty")
	flags.Parse(args)
	if flags.NArg() != 1 {
		return errors.New("build takes one directory")
	}
	root := flags.Arg(0)

	include := map[string]bool{}
	for _, ext := range strings.Split(*exts, ",") {
		if ext = strings.TrimSpace(ext); ext != "" {
			include[ext] = true
		}
	}

	builder, err := kar.NewBuilder(kar.Header{
		Author:      *author,
		DateCreated: time.Now().Unix(),
		Version:     *version,
	})
	if err != nil {
		return err
	}
	defer builder.Close()

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if len(include) > 0 && !include[filepath.Ext(path)] {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		log.WithField("file", filepath.ToSlash(rel)).Debug("Adding")
		return builder.Add(filepath.ToSlash(rel), f)
	})
	if err != nil {
		return errors.Wrap(err, "collect files")
	}

	if _, err := os.Stat(*output); err == nil && !*force {
		return errors.Errorf("%s exists, will not overwrite", *output)
	}
	out, err := os.Create(*output)
	if err != nil {
		return err
	}
	written, err := builder.WriteTo(out)
	if err != nil {
		out.Close()
		return errors.Wrap(err, "write archive")
	}
	log.WithFields(log.Fields{
		"archive": *output,
		"bytes":   written,
	}).Info("Archive built")
	return out.Close()
}

func list(args []string) error {
	if len(args) != 1 {
		return errors.New("list takes one archive")
	}
	archive, err := kar.OpenFile(args[0])
	if err != nil {
		return err
	}
	defer archive.Close()

	header := archive.Header()
	fmt.Printf("author: %s, created: %s, version: %d\n",
		header.Author, time.Unix(header.DateCreated, 0).Format(time.RFC3339), header.Version)

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSIZE\tCOMPRESSED")
	for _, entry := range header.Index {
		fmt.Fprintf(w, "%s\t%d\t%d\n", entry.Name, entry.Size, entry.CompressedSize)
	}
	return w.Flush()
}

func extract(args []string) error {
	flags := flag.NewFlagSet("extract", flag.ExitOnError)
	dir := flags.String("C", ".", "Directory to extract into")
	flags.Parse(args)
	if flags.NArg() < 1 {
		return errors.New("extract takes an archive")
	}

	archive, err := kar.OpenFile(flags.Arg(0))
	if err != nil {
		return err
	}
	defer archive.Close()

	names := flags.Args()[1:]
	if len(names) == 0 {
		names = archive.Files()
	}
	for _, name := range names {
		if err := extractFile(archive, name, *dir); err != nil {
			return errors.Wrap(err, name)
		}
	}
	return nil
}

func extractFile(archive *kar.Archive, name, dir string) error {
	if !filepath.IsLocal(filepath.FromSlash(name)) {
		return errors.New("file would be extracted outside of the directory")
	}
	path := filepath.Join(dir, filepath.FromSlash(name))

	r, err := archive.Open(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
