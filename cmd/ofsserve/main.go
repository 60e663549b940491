// Command ofsserve exposes read-only introspection (superblock geometry,
// directory listings) for a mounted OFS image over HTTP. It is an
// external collaborator, not part of the filesystem core.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/wzq/ofs/ofs"
	"github.com/wzq/ofs/storage"
)

func main() {
	path := flag.String("image", "", "path to the image file")
	sectorSize := flag.Int("sector-size", 512, "sector size in bytes")
	wordSize := flag.Int("word-size", 2, "WORD_SIZE: 2 or 4")
	addr := flag.String("addr", ":8080", "listen address")
	flag.Parse()

	logger := logrus.StandardLogger()
	s, err := storage.OpenFile(*path, *sectorSize, true)
	if err != nil {
		log.Fatal(err)
	}
	fs, err := ofs.Mount(s, *wordSize, ofs.Options{Log: logger})
	if err != nil {
		log.Fatal(err)
	}
	defer fs.Close()

	http.HandleFunc("/stat", func(w http.ResponseWriter, r *http.Request) {
		ctx := fs.Context()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"uuid":          ctx.UUID.String(),
			"word_size":     ctx.WordSize,
			"sector_size":   ctx.SectorSize,
			"total_sectors": ctx.TotalSectorCount,
			"inode_sectors": ctx.InodeSectorCount,
			"total_inodes":  ctx.TotalInodeCount,
			"data_sectors":  ctx.FreeSectorCount,
		})
	})

	http.HandleFunc("/ls", func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Query().Get("path")
		if p == "" {
			p = "/"
		}
		id, err := fs.Resolve(p)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		in, err := fs.LoadInode(id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		entries, err := fs.ReadDir(in)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(entries)
	})

	logger.WithField("addr", *addr).Info("ofsserve: listening")
	log.Fatal(http.ListenAndServe(*addr, nil))
}
