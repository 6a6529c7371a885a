// Command embeddbctl is a line-oriented shell over an embeddb store, the
// same role a database REPL plays for a query language: each input line is
// one operation against an open store, with results printed directly.
package main

import (
	"bufio"
	"encoding/binary"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ngenohydra/embeddb/embeddb"
	"github.com/ngenohydra/embeddb/storage"
)

func main() {
	dataPath := flag.String("data", "embeddb.dat", "path to the data file (use :memory: for an in-memory store)")
	pageSize := flag.Int("pagesize", 512, "page size in bytes")
	numPages := flag.Uint("pages", 1024, "number of data pages in the ring")
	varPath := flag.String("vardata", "", "path to a variable-data file; enables putvar/getvar when set")
	numVarPages := flag.Uint("varpages", 1024, "number of variable-data pages in the ring")
	reset := flag.Bool("reset", false, "truncate any existing data on open")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	cfg := embeddb.Config{
		KeySize:            8,
		DataSize:           8,
		PageSize:           *pageSize,
		BufferSizeInBlocks: 2,
		NumSplinePoints:    32,
		SplineMaxError:     4,
		NumDataPages:       uint32(*numPages),
		ResetData:          *reset,
		DataFile:           openFile(*dataPath, *pageSize, uint32(*numPages)),
		Logger:             logger.Sugar(),
	}
	if *varPath != "" {
		cfg.UseVarData = true
		cfg.BufferSizeInBlocks = 4 // write, read, var-write, var-read
		cfg.NumVarPages = uint32(*numVarPages)
		cfg.VarFile = openFile(*varPath, *pageSize, uint32(*numVarPages))
	}

	db, err := embeddb.Open(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	runShell(db)
}

func openFile(path string, pageSize int, pages uint32) storage.PageFile {
	if path == ":memory:" {
		return storage.NewMemory(pageSize, pages)
	}
	return storage.NewFile(path, pageSize)
}

func runShell(db *embeddb.DB) {
	fmt.Println("embeddbctl: put/get/putvar/getvar/flush/.exit")
	reader := bufio.NewScanner(os.Stdin)
	for prompt(reader) {
		line := strings.TrimSpace(reader.Text())
		if line == "" {
			continue
		}
		if line == ".exit" {
			return
		}
		if err := dispatch(db, line); err != nil {
			fmt.Println("err:", err)
		}
	}
}

func prompt(reader *bufio.Scanner) bool {
	fmt.Print("embeddb> ")
	return reader.Scan()
}

func dispatch(db *embeddb.DB, line string) error {
	fields := strings.Fields(line)
	switch fields[0] {
	case "put":
		if len(fields) != 3 {
			return fmt.Errorf("usage: put <key> <data>")
		}
		key, data, err := parseKeyData(fields[1], fields[2])
		if err != nil {
			return err
		}
		return db.Put(key, data)
	case "get":
		if len(fields) != 2 {
			return fmt.Errorf("usage: get <key>")
		}
		key, err := parseUint64(fields[1])
		if err != nil {
			return err
		}
		data, err := db.Get(key)
		if err != nil {
			return err
		}
		fmt.Println(binary.BigEndian.Uint64(data))
		return nil
	case "putvar":
		if len(fields) != 4 {
			return fmt.Errorf("usage: putvar <key> <data> <payload>")
		}
		key, data, err := parseKeyData(fields[1], fields[2])
		if err != nil {
			return err
		}
		return db.PutVar(key, data, []byte(fields[3]))
	case "getvar":
		if len(fields) != 2 {
			return fmt.Errorf("usage: getvar <key>")
		}
		key, err := parseUint64(fields[1])
		if err != nil {
			return err
		}
		payload, err := db.GetVar(key)
		if err != nil {
			return err
		}
		fmt.Println(string(payload))
		return nil
	case "flush":
		return db.Flush()
	default:
		return fmt.Errorf("unknown command %q", fields[0])
	}
}

func parseUint64(s string) ([]byte, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid integer %q: %w", s, err)
	}
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b, nil
}

func parseKeyData(keyStr, dataStr string) (key, data []byte, err error) {
	key, err = parseUint64(keyStr)
	if err != nil {
		return nil, nil, err
	}
	data, err = parseUint64(dataStr)
	if err != nil {
		return nil, nil, err
	}
	return key, data, nil
}
