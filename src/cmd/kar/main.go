// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"bytes"
	"flag"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/vkimage/src/gfx"
	"github.com/devblok/vkimage/src/utility/kar"
)

func init() {
	currentUserName = "unknown"
	if u, err := user.Current(); err == nil {
		currentUserName = u.Name
	}
}

// textureExtensions are decoded before packing, anything else is rejected.
var textureExtensions = map[string]bool{
	".png":  true,
	".bmp":  true,
	".jpg":  true,
	".jpeg": true,
}

var (
	currentUserName string
	author          = flag.String("author", "", "Set the author of the package when compressing, current user by default")
	version         = flag.Int64("version", 1, "Archive version number to create it with")
	extract         = flag.String("e", "", "Extract the archive given")
	compress        = flag.String("c", "", "Compress the given texture folder")
	list            = flag.String("l", "", "List the contents of the archive given")
	dstFile         = flag.String("f", "out.kar", "Destination file, or directory when extracting")
	silent          = flag.Bool("s", false, "Silent")
)

func main() {
	flag.Parse()
	if *silent {
		log.SetLevel(log.WarnLevel)
	}

	ops := 0
	for _, op := range []string{*extract, *compress, *list} {
		if op != "" {
			ops++
		}
	}
	if ops > 1 {
		log.Fatal("only one operation at a time")
	}

	var err error
	switch {
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
		log.WithError(err).Fatal("kar")
	}
}

func compressFiles(src, dst string) error {
	if _, err := os.Stat(dst); err == nil {
		return errors.Errorf("destination file %s exists, will not overwrite", dst)
	}

	var filesToCompress []string
	err := filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if !textureExtensions[strings.ToLower(filepath.Ext(path))] {
			log.WithField("file", path).Warn("not a texture, skipped")
			return nil
		}
		filesToCompress = append(filesToCompress, path)
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "filepath.Walk()")
	}

	header := kar.Header{
		Author:      currentUserName,
		DateCreated: time.Now().Unix(),
		Version:     *version,
	}
	if *author != "" {
		header.Author = *author
	}

	karBuilder, err := kar.NewBuilder(header)
	if err != nil {
		return err
	}
	defer karBuilder.Close()

	for _, ftc := range filesToCompress {
		if err := addTexture(karBuilder, src, ftc); err != nil {
			return err
		}
	}

	out, err := os.Create(dst)
	if err != nil {
		return errors.Wrap(err, "os.Create()")
	}
	written, err := karBuilder.WriteTo(out)
	if err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return errors.Wrap(err, "close archive")
	}

	log.WithFields(log.Fields{
		"archive": dst,
		"files":   karBuilder.Len(),
		"bytes":   written,
	}).Info("archive written")
	return nil
}

// addTexture checks that the file decodes as an image before adding it
// under its slash separated path relative to root.
func addTexture(b *kar.Builder, root, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "os.ReadFile()")
	}
	pixels, err := gfx.DecodePixels(bytes.NewReader(data))
	if err != nil {
		return errors.Wrapf(err, "texture %s", path)
	}

	name, err := filepath.Rel(root, path)
	if err != nil {
		return errors.Wrap(err, "filepath.Rel()")
	}
	name = filepath.ToSlash(name)
	if err := b.Add(name, bytes.NewReader(data)); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"name":   name,
		"width":  pixels.Extent.Width,
		"height": pixels.Extent.Height,
	}).Debug("texture added")
	return nil
}

func extractFiles(src, dst string) error {
	archive, err := kar.OpenFile(src)
	if err != nil {
		return err
	}
	defer archive.Close()

	for _, name := range archive.Names() {
		target := filepath.Join(dst, filepath.FromSlash(name))
		if !strings.HasPrefix(target, filepath.Clean(dst)+string(filepath.Separator)) {
			return errors.Errorf("entry %s escapes %s", name, dst)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return errors.Wrap(err, "os.MkdirAll()")
		}
		if err := extractFile(archive, name, target); err != nil {
			return err
		}
		log.WithField("file", target).Info("extracted")
	}
	return nil
}

func extractFile(archive *kar.Archive, name, target string) error {
	r, err := archive.Open(name)
	if err != nil {
		return err
	}
	f, err := os.Create(target)
	if err != nil {
		return errors.Wrap(err, "os.Create()")
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return errors.Wrapf(err, "extract %s", name)
	}
	return f.Close()
}

func listFiles(src string) error {
	archive, err := kar.OpenFile(src)
	if err != nil {
		return err
	}
	defer archive.Close()

	header := archive.Header()
	log.WithFields(log.Fields{
		"author":  header.Author,
		"created": time.Unix(header.DateCreated, 0).Format(time.RFC3339),
		"version": header.Version,
	}).Info(src)
	for _, entry := range header.Index {
		log.WithFields(log.Fields{
			"size":       entry.Size,
			"compressed": entry.CompressedSize,
		}).Info(entry.Name)
	}
	return nil
}
