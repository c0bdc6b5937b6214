// Diagnostics: a JSON snapshot of a table's dictionary and per-index
// shape, used by cmd/vbisamdump.
//
// goccy/go-json is this package's one place that needs JSON at all,
// so it is the library's sole home here.
package isam

import (
	"io"

	"github.com/goccy/go-json"
)

// IndexInfo summarizes one open index.
type IndexInfo struct {
	Index      int    `json:"index"`
	Root       int64  `json:"root"`
	Duplicates bool   `json:"duplicates"`
	KeyLength  int    `json:"keyLength"`
	PartCount  int    `json:"partCount"`
}

// Description is the JSON-serializable shape Describe returns.
type Description struct {
	NodeSize       int         `json:"nodeSize"`
	BuildMode      int         `json:"buildMode"`
	MinRowLength   int         `json:"minRowLength"`
	MaxRowLength   int         `json:"maxRowLength"`
	DataRowCount   int64       `json:"dataRowCount"`
	IndexNodeCount int64       `json:"indexNodeCount"`
	TxnNumber      int64       `json:"txnNumber"`
	UniqueID       int64       `json:"uniqueId"`
	Indexes        []IndexInfo `json:"indexes"`
}

// Describe snapshots the handle's current dictionary and index shape.
// It takes only a shared enter: a diagnostic read never modifies the
// table and is never written to the transaction log.
func (t *Table) Describe() (*Description, error) {
	if err := t.enter(false); err != nil {
		return nil, err
	}
	defer t.exit()

	d := &Description{
		NodeSize:       t.cfg.NodeSize,
		BuildMode:      t.cfg.BuildMode,
		MinRowLength:   t.dict.MinRowLength,
		MaxRowLength:   t.dict.MaxRowLength,
		DataRowCount:   t.dict.DataRowCount,
		IndexNodeCount: t.dict.IndexNodeCount,
		TxnNumber:      t.dict.TxnNumber,
		UniqueID:       t.dict.UniqueID,
	}
	for i, kd := range t.keyDescs {
		d.Indexes = append(d.Indexes, IndexInfo{
			Index:      i,
			Root:       kd.Root,
			Duplicates: kd.hasDups(),
			KeyLength:  kd.totalLength(),
			PartCount:  len(kd.Parts),
		})
	}
	return d, nil
}

// Dump writes Describe's snapshot to w as indented JSON.
func (t *Table) Dump(w io.Writer) error {
	d, err := t.Describe()
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}
