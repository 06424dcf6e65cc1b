package scan

import (
	"reflect"
	"testing"
)

func TestSplitRange(t *testing.T) {
	cases := []struct {
		name      string
		from, to  uint64
		batchSize uint64
		want      []BlockRange
	}{
		{
			name: "even split", from: 0, to: 9, batchSize: 5,
			want: []BlockRange{{From: 0, To: 4}, {From: 5, To: 9}},
		},
		{
			name: "ragged tail", from: 100, to: 106, batchSize: 3,
			want: []BlockRange{{From: 100, To: 102}, {From: 103, To: 105}, {From: 106, To: 106}},
		},
		{
			name: "batch larger than range", from: 42, to: 44, batchSize: 1000,
			want: []BlockRange{{From: 42, To: 44}},
		},
		{
			name: "single block", from: 7, to: 7, batchSize: 1,
			want: []BlockRange{{From: 7, To: 7}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := SplitRange(tc.from, tc.to, tc.batchSize)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ranges mismatch: %+v != %+v", got, tc.want)
			}
		})
	}
}

func TestSplitRangeInvalid(t *testing.T) {
	if _, err := SplitRange(10, 9, 1); err == nil {
		t.Fatalf("expected error for inverted range")
	}
	if _, err := SplitRange(1, 10, 0); err == nil {
		t.Fatalf("expected error for zero batch size")
	}
}
