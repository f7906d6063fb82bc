package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dharsanguruparan/compressdash/internal/jobapi"
	"github.com/dharsanguruparan/compressdash/internal/model"
)

// commandKind enumerates the watch prompt commands.
type commandKind int

const (
	cmdNext commandKind = iota + 1
	cmdPrev
	cmdGoto
	cmdFilter
	cmdRefresh
	cmdRetry
	cmdDownload
	cmdDetails
	cmdUpload
	cmdHelp
	cmdQuit
)

// command is one parsed prompt line.
type command struct {
	kind   commandKind
	page   int
	filter model.Filter
	id     int64
	paths  []string
}

var errEmptyCommand = errors.New("empty command")

const helpText = `n / p            next / previous page
g <page>         go to page
f <status|all>   filter by pending, processing, completed, failed or all
r                refresh now
retry <id>       retry a failed job
download <id>    download a completed job's image
details <id>     show one job
upload <files>   upload .jpg, .jpeg or .png files
q                quit`

func parseCommand(line string) (command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{}, errEmptyCommand
	}
	name, args := strings.ToLower(fields[0]), fields[1:]
	switch name {
	case "n", "next":
		return command{kind: cmdNext}, nil
	case "p", "prev":
		return command{kind: cmdPrev}, nil
	case "g", "goto", "page":
		if len(args) != 1 {
			return command{}, fmt.Errorf("usage: g <page>")
		}
		page, err := strconv.Atoi(args[0])
		if err != nil {
			return command{}, fmt.Errorf("invalid page %q", args[0])
		}
		return command{kind: cmdGoto, page: page}, nil
	case "f", "filter":
		arg := ""
		if len(args) > 0 {
			arg = args[0]
		}
		filter, err := model.ParseFilter(arg)
		if err != nil {
			return command{}, err
		}
		return command{kind: cmdFilter, filter: filter}, nil
	case "r", "refresh":
		return command{kind: cmdRefresh}, nil
	case "retry", "download", "d", "details", "show":
		if len(args) != 1 {
			return command{}, fmt.Errorf("usage: %s <id>", name)
		}
		id, err := parseID(args[0])
		if err != nil {
			return command{}, err
		}
		kind := cmdDetails
		switch name {
		case "retry":
			kind = cmdRetry
		case "download", "d":
			kind = cmdDownload
		}
		return command{kind: kind, id: id}, nil
	case "upload", "u":
		if len(args) == 0 {
			return command{}, fmt.Errorf("usage: upload <files...>")
		}
		return command{kind: cmdUpload, paths: args}, nil
	case "h", "help", "?":
		return command{kind: cmdHelp}, nil
	case "q", "quit", "exit":
		return command{kind: cmdQuit}, nil
	}
	return command{}, fmt.Errorf("unknown command %q, type help", name)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid job id %q", s)
	}
	return id, nil
}

// openImages opens the given paths for upload. Directories and zero-byte
// files are skipped; extension filtering is left to the controller. The
// returned func closes every opened file.
func openImages(paths []string) ([]jobapi.File, func(), error) {
	var (
		files   []jobapi.File
		handles []*os.File
	)
	closeAll := func() {
		for _, h := range handles {
			h.Close()
		}
	}
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("stat %s: %w", p, err)
		}
		if info.IsDir() || info.Size() == 0 {
			continue
		}
		f, err := os.Open(p)
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("open %s: %w", p, err)
		}
		handles = append(handles, f)
		files = append(files, jobapi.File{Name: p, Content: f})
	}
	return files, closeAll, nil
}
