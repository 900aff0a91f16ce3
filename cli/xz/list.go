// Copyright 2025 Northern.tech AS
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/dsemak/go-xz"
	"github.com/dsemak/go-xz/lzma"
)

// listSummary is one row of the --list report, also used to accumulate the
// totals row.
type listSummary struct {
	streams      uint64
	blocks       uint64
	compressed   uint64
	uncompressed uint64
	checks       uint32
}

// checkNames renders the checks bitmask as the names of the integrity checks
// seen in the file.
func checkNames(mask uint32) string {
	if mask == 0 {
		return "Unknown"
	}
	known := []lzma.Check{
		lzma.CheckNone, lzma.CheckCRC32, lzma.CheckCRC64, lzma.CheckSHA256,
	}
	var names []string
	for _, check := range known {
		if mask&(1<<uint32(check)) != 0 {
			names = append(names, check.String())
		}
	}
	if len(names) == 0 {
		return "Unknown"
	}
	return strings.Join(names, ",")
}

func listFile(path string, config *cliConfig) error {
	if path == "" {
		return errors.New("--list does not support reading from standard input")
	}

	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "can not open '%s'", path)
	}
	defer f.Close()

	memlimit := config.memlimit
	if memlimit == 0 {
		memlimit = lzma.MemLimitUnbounded
	}

	info, err := xz.ExtractFileInfo(f, memlimit)
	if err != nil {
		return err
	}
	defer info.Close()

	row := listSummary{
		streams:      info.StreamCount(),
		blocks:       info.BlockCount(),
		compressed:   info.FileSize(),
		uncompressed: info.UncompressedSize(),
		checks:       info.Checks(),
	}

	writeListHeader(config)
	writeListRow(row, path)
	if config.verbose {
		writeVerboseReport(info)
	}

	config.listTotals.streams += row.streams
	config.listTotals.blocks += row.blocks
	config.listTotals.compressed += row.compressed
	config.listTotals.uncompressed += row.uncompressed
	config.listTotals.checks |= row.checks
	config.listFiles++

	return nil
}

func writeListHeader(config *cliConfig) {
	if config.listHeader {
		return
	}
	config.listHeader = true
	fmt.Printf("%5s %7s %12s %12s  %5s  %-10s %s\n",
		"Strms", "Blocks", "Compressed", "Uncompressed", "Ratio", "Check", "Filename")
}

func writeListRow(row listSummary, path string) {
	fmt.Printf("%5d %7d %12d %12d %5.1f%%  %-10s %s\n",
		row.streams, row.blocks, row.compressed, row.uncompressed,
		xz.Ratio(row.compressed, row.uncompressed), checkNames(row.checks), path)
}

// writeVerboseReport prints per-stream and per-block detail below the
// summary row.
func writeVerboseReport(info *xz.FileInfo) {
	fmt.Printf("  Streams:\n")
	fmt.Printf("    %6s %7s %12s %12s %12s %8s\n",
		"Stream", "Blocks", "CompOffset", "UncompOffset", "CompSize", "Padding")
	for _, stream := range info.Streams() {
		fmt.Printf("    %6d %7d %12d %12d %12d %8d\n",
			stream.Number, stream.BlockCount, stream.CompressedOffset,
			stream.UncompressedOffset, stream.CompressedSize, stream.Padding)
	}

	fmt.Printf("  Blocks:\n")
	fmt.Printf("    %6s %7s %12s %12s %12s %12s\n",
		"Stream", "Block", "CompOffset", "UncompOffset", "TotalSize", "UncompSize")
	for _, block := range info.Blocks() {
		fmt.Printf("    %6d %7d %12d %12d %12d %12d\n",
			block.NumberInStream, block.NumberInFile, block.CompressedFileOffset,
			block.UncompressedFileOffset, block.TotalSize, block.UncompressedSize)
	}
}

func printListTotals(config *cliConfig) {
	if config.listFiles <= 1 {
		return
	}
	totals := config.listTotals
	fmt.Printf("%5d %7d %12d %12d %5.1f%%  %-10s %d files\n",
		totals.streams, totals.blocks, totals.compressed, totals.uncompressed,
		xz.Ratio(totals.compressed, totals.uncompressed), checkNames(totals.checks),
		config.listFiles)
}
