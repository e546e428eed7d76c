package jsondoc

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestParseKeepsKeyOrderAndIndentsLikeReviewers(t *testing.T) {
	in := `{"decision":"include","notes":{"c2":{"status":"pass","evidence":"ChatGPT 写作反馈"},"c1":{"status":"unclear","evidence":""}},"tags":[],"n":1.50}`
	v, err := Parse([]byte(in))
	require.NoError(t, err)

	want := `{
    "decision": "include",
    "notes": {
        "c2": {
            "status": "pass",
            "evidence": "ChatGPT 写作反馈"
        },
        "c1": {
            "status": "unclear",
            "evidence": ""
        }
    },
    "tags": [],
    "n": 1.5
}`
	if diff := cmp.Diff(want, Indent(v, "    ")); diff != "" {
		t.Fatalf("indent mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	_, err := Parse([]byte(`{"a":1} {"b":2}`))
	require.Error(t, err)
	_, err = Parse([]byte(`{"a":`))
	require.Error(t, err)
}

func TestDuplicateKeysKeepFirstPositionLastValue(t *testing.T) {
	obj, err := ParseObject([]byte(`{"a":1,"b":2,"a":3}`))
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, obj.Keys)
	require.Equal(t, "3", Cell(obj.Values["a"]))
}

func TestFlattenSectionsAndCleansKeys(t *testing.T) {
	obj, err := ParseObject([]byte(`{
		"study_id (研究编号)": "S01",
		"Methodology": {"sample_size_and_effect (样本量)": "n=60", "design": {"type": "quasi"}},
		"flags": [1, 2],
		"score": null
	}`))
	require.NoError(t, err)

	got := Flatten(obj, true)
	want := []Field{
		{Key: "study_id", Value: "S01"},
		{Key: "Methodology.sample_size_and_effect", Value: "n=60"},
		{Key: "Methodology.design", Value: `{"type": "quasi"}`},
		{Key: "flags", Value: "[1, 2]"},
		{Key: "score", Value: ""},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("flatten mismatch (-want +got):\n%s", diff)
	}

	raw := Flatten(obj, false)
	require.Equal(t, "study_id (研究编号)", raw[0].Key)
}

func TestCleanKey(t *testing.T) {
	cases := map[string]string{
		"author (作者)":  "author",
		"  plain  ":    "plain",
		"a (b) (c)":    "a",
		"no_paren(x)":  "no_paren(x)",
	}
	for in, want := range cases {
		if got := CleanKey(in); got != want {
			t.Fatalf("CleanKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatNumberMatchesPythonJSON(t *testing.T) {
	cases := map[string]string{
		"42":      "42",
		"-0":      "0",
		"1.50":    "1.5",
		"1E5":     "100000.0",
		"2.0":     "2.0",
		"0.0001":  "0.0001",
		"0.00001": "1e-05",
		"1e16":    "1e+16",
		"1.25e20": "1.25e+20",
		"-3.10":   "-3.1",
		"1e999":   "Infinity",
	}
	for in, want := range cases {
		require.Equal(t, want, FormatNumber(json.Number(in)), in)
	}
}

func TestIndentEscapesOnlyControlCharacters(t *testing.T) {
	v, err := Parse([]byte(`{"a": "line sep \"q\" \\ tab\t\u0001 <b>&", "b": 1E5}`))
	require.NoError(t, err)
	want := "{\"a\": \"line sep \\\"q\\\" \\\\ tab\\t\\u0001 <b>&\", \"b\": 100000.0}"
	require.Equal(t, want, Compact(v))
}

func TestIndentKeepsLineSeparatorsRaw(t *testing.T) {
	v, err := Parse([]byte(`{"a": "x\u2028y\u2029z"}`))
	require.NoError(t, err)
	require.Equal(t, "{\"a\": \"x\u2028y\u2029z\"}", Compact(v))
}
