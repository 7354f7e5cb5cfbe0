package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTimestampCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b Timestamp
		want int
	}{
		{
			name: "wall clock dominates",
			a:    Timestamp{WallNanos: 2, Counter: 0, DC: "a"},
			b:    Timestamp{WallNanos: 1, Counter: 9, DC: "z"},
			want: 1,
		},
		{
			name: "counter breaks wall ties",
			a:    Timestamp{WallNanos: 5, Counter: 1, DC: "a"},
			b:    Timestamp{WallNanos: 5, Counter: 2, DC: "a"},
			want: -1,
		},
		{
			name: "dc id breaks full ties",
			a:    Timestamp{WallNanos: 5, Counter: 1, DC: "dc-b"},
			b:    Timestamp{WallNanos: 5, Counter: 1, DC: "dc-a"},
			want: 1,
		},
		{
			name: "equal",
			a:    Timestamp{WallNanos: 5, Counter: 1, DC: "dc-a"},
			b:    Timestamp{WallNanos: 5, Counter: 1, DC: "dc-a"},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Compare(tt.b))
			assert.Equal(t, -tt.want, tt.b.Compare(tt.a))
		})
	}
}

func TestTimestampAfter(t *testing.T) {
	older := Timestamp{WallNanos: 1, DC: "a"}
	newer := Timestamp{WallNanos: 2, DC: "a"}

	assert.True(t, newer.After(older))
	assert.False(t, older.After(newer))
	assert.False(t, older.After(older))
}

func TestReplicaRecordDCSet(t *testing.T) {
	record := &ReplicaRecord{Key: "k"}

	record.AddDC("dc-a")
	record.AddDC("dc-b")
	record.AddDC("dc-a") // idempotent
	assert.Equal(t, []DCID{"dc-a", "dc-b"}, record.DCs)
	assert.True(t, record.HasDC("dc-a"))
	assert.False(t, record.HasDC("dc-c"))

	record.RemoveDC("dc-a")
	record.RemoveDC("dc-a") // idempotent
	assert.Equal(t, []DCID{"dc-b"}, record.DCs)
}

func TestReplicaRecordRemotePeers(t *testing.T) {
	record := &ReplicaRecord{DCs: []DCID{"dc-a", "dc-b", "dc-c"}}

	assert.Equal(t, []DCID{"dc-b", "dc-c"}, record.RemotePeers("dc-a"))
	assert.Equal(t, []DCID{"dc-a", "dc-b", "dc-c"}, record.RemotePeers("dc-x"))
}

func TestReplicaRecordClone(t *testing.T) {
	record := &ReplicaRecord{Key: "k", DCs: []DCID{"dc-a"}}

	clone := record.Clone()
	clone.AddDC("dc-b")
	clone.Replicated = true

	assert.Equal(t, []DCID{"dc-a"}, record.DCs)
	assert.False(t, record.Replicated)
}
