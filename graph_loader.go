package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// zstdMagic is the frame header of a zstd stream
var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// snapshotNode is a node position as written by the grid authoring tool
type snapshotNode struct {
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	IsBorderNode bool    `json:"isBorderNode,omitempty"`
}

// snapshotRecord is one element of the snapshot array
type snapshotRecord struct {
	CurrentNode   snapshotNode   `json:"currentNode"`
	NeighborNodes []snapshotNode `json:"neighborNodes"`
}

const graphSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "minItems": 1,
  "items": {
    "type": "object",
    "required": ["currentNode"],
    "properties": {
      "currentNode": {"$ref": "#/definitions/node"},
      "neighborNodes": {
        "type": "array",
        "items": {"$ref": "#/definitions/node"}
      }
    }
  },
  "definitions": {
    "node": {
      "type": "object",
      "required": ["x", "y"],
      "properties": {
        "x": {"type": "number"},
        "y": {"type": "number"},
        "isBorderNode": {"type": "boolean"}
      }
    }
  }
}`

var graphSchema = jsonschema.MustCompileString("nodes_neighbors.schema.json", graphSchemaJSON)

// ReadGraph decodes a (possibly zstd-compressed) JSON snapshot and builds the graph
func ReadGraph(r io.Reader) (*NavGraph, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	if bytes.HasPrefix(data, zstdMagic) {
		dec, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: zstd stream: %v", ErrMalformedGraph, err)
		}
		defer dec.Close()

		data, err = io.ReadAll(dec)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd decode: %v", ErrMalformedGraph, err)
		}
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedGraph, err)
	}
	if err := graphSchema.Validate(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedGraph, err)
	}

	var snapshot []snapshotRecord
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedGraph, err)
	}

	records := make([]NodeRecord, len(snapshot))
	for i, rec := range snapshot {
		records[i] = NodeRecord{
			Position:  Point{X: rec.CurrentNode.X, Y: rec.CurrentNode.Y},
			IsBorder:  rec.CurrentNode.IsBorderNode,
			Neighbors: make([]Point, len(rec.NeighborNodes)),
		}
		for j, nb := range rec.NeighborNodes {
			records[i].Neighbors[j] = Point{X: nb.X, Y: nb.Y}
		}
	}

	return BuildGraph(records)
}

// LoadGraph reads a graph snapshot from disk
func LoadGraph(filename string) (*NavGraph, error) {
	log.Printf("📂 Loading navigation graph from %s...\n", filename)

	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open graph file: %w", err)
	}
	defer f.Close()

	graph, err := ReadGraph(bufio.NewReaderSize(f, 256*1024))
	if err != nil {
		log.Printf("   ❌ Failed to load %s: %v\n", filepath.Base(filename), err)
		return nil, err
	}

	log.Printf("   ✅ Graph loaded: %d nodes, %d border nodes, %d edges\n",
		graph.Len(), graph.BorderCount(), graph.EdgeCount())
	return graph, nil
}

// WriteGraph encodes the graph as a JSON snapshot
func WriteGraph(w io.Writer, g *NavGraph) error {
	recs := g.records()
	snapshot := make([]snapshotRecord, len(recs))
	for i, rec := range recs {
		snapshot[i] = snapshotRecord{
			CurrentNode:   snapshotNode{X: rec.Position.X, Y: rec.Position.Y, IsBorderNode: rec.IsBorder},
			NeighborNodes: make([]snapshotNode, len(rec.Neighbors)),
		}
		for j, nb := range rec.Neighbors {
			snapshot[i].NeighborNodes[j] = snapshotNode{X: nb.X, Y: nb.Y, IsBorderNode: g.IsBorder(nb)}
		}
	}

	if err := json.NewEncoder(w).Encode(snapshot); err != nil {
		return fmt.Errorf("failed to marshal graph: %w", err)
	}
	return nil
}

// SaveGraph writes the graph to disk, zstd-compressed when the name ends in .zst
func SaveGraph(g *NavGraph, filename string) error {
	log.Printf("💾 Saving navigation graph to %s...\n", filename)

	f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	defer f.Close()

	if !strings.HasSuffix(filename, ".zst") {
		bw := bufio.NewWriterSize(f, 256*1024)
		if err := WriteGraph(bw, g); err != nil {
			return err
		}
		if err := bw.Flush(); err != nil {
			return fmt.Errorf("failed to write file: %w", err)
		}
		log.Printf("   ✅ Graph saved (%d nodes)\n", g.Len())
		return nil
	}

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("failed to open zstd writer: %w", err)
	}
	if err := WriteGraph(enc, g); err != nil {
		enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to flush zstd stream: %w", err)
	}

	log.Printf("   ✅ Graph saved (%d nodes)\n", g.Len())
	return nil
}
