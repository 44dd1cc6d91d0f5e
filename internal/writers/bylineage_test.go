package writers

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govizu-core/align"
	"govizu-core/partition"
)

func TestWriteByLineage(t *testing.T) {
	coldate := time.Date(2020, 3, 27, 0, 0, 0, 0, time.UTC)
	p := partition.Partition{
		"B.1": {
			{
				VirusName:      "hCoV-19/A",
				AccessionID:    "EPI_ISL_1",
				Lineage:        "B.1",
				CollectionDate: coldate,
				Diffs: []align.Edit{
					{Op: align.OpSub, Pos: 1003, Seq: "T"},
					{Op: align.OpDel, Pos: 3300, Len: 6},
				},
				Missing:  []align.Span{{Start: 0, End: 54}},
				Coverage: 0.99,
			},
		},
		"A.2": {
			{VirusName: "hCoV-19/B", AccessionID: "EPI_ISL_2", Lineage: "A.2", CollectionDate: coldate, Coverage: 1},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteByLineage(&buf, p))

	var out map[string][]struct {
		Name      string            `json:"name"`
		Accession string            `json:"accession"`
		ColDate   string            `json:"coldate"`
		Diffs     []json.RawMessage `json:"diffs"`
		Missing   []json.RawMessage `json:"missing"`
		Coverage  float64           `json:"coverage"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out, 2)

	b1 := out["B.1"]
	require.Len(t, b1, 1)
	assert.Equal(t, "EPI_ISL_1", b1[0].Accession)
	assert.Equal(t, "2020-03-27", b1[0].ColDate)
	require.Len(t, b1[0].Diffs, 2)
	assert.JSONEq(t, `["~",1003,"T"]`, string(b1[0].Diffs[0]))
	assert.JSONEq(t, `["-",3300,6]`, string(b1[0].Diffs[1]))
	assert.JSONEq(t, `[0,54]`, string(b1[0].Missing[0]))

	// records with no divergence serialize empty lists, not null
	a2 := out["A.2"]
	require.Len(t, a2, 1)
	assert.NotNil(t, a2[0].Diffs)
	assert.Contains(t, buf.String(), `"diffs":[]`)
}

func TestWriteDBStats(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDBStats(&buf, time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC), 1234))
	assert.True(t, strings.Contains(buf.String(), `"lastupdate": "2020-06-01"`), buf.String())
	assert.True(t, strings.Contains(buf.String(), `"noseqs": 1234`), buf.String())
}
