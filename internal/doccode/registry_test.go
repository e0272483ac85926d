package doccode_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"pgregory.net/rapid"

	"github.com/jpl-au/dms/internal/doccode"
	"github.com/jpl-au/dms/internal/errs"
)

func adlRule() doccode.Rule {
	return doccode.Rule{
		ID:            1,
		Title:         "Adlibre Invoices",
		Pattern:       `ADL-[0-9]{4}`,
		Split:         "0:3,4:",
		Format:        "ADL-%s",
		Width:         4,
		SequenceStart: 1000,
		Active:        true,
	}
}

func setupRegistry(t *testing.T) (*doccode.Registry, *doccode.MemorySequencer) {
	t.Helper()
	seq := doccode.NewMemorySequencer()
	reg := doccode.NewRegistry(seq)
	_, err := reg.Register(adlRule())
	require.NoError(t, err)
	_, err = reg.Register(doccode.Rule{
		ID: 2, Title: "Credit Card", Pattern: `CCC-[0-9]{16}`, Split: "0:3,'cards',group:0", Luhn: true, Active: true,
	})
	require.NoError(t, err)
	return reg, seq
}

// --- Register ---

func TestRegister_InvalidPattern(t *testing.T) {
	reg := doccode.NewRegistry(nil)
	_, err := reg.Register(doccode.Rule{ID: 1, Pattern: `ADL-[`, Active: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrConfiguration))
}

func TestRegister_DuplicateID(t *testing.T) {
	reg, _ := setupRegistry(t)
	_, err := reg.Register(doccode.Rule{ID: 1, Pattern: `X`, Active: true})
	assert.ErrorIs(t, err, errs.ErrConfiguration)
}

func TestRegister_SecondFallback(t *testing.T) {
	reg := doccode.NewRegistry(nil)
	_, err := reg.Register(doccode.Rule{ID: 10, NoDoccode: true, Active: true})
	require.NoError(t, err)
	_, err = reg.Register(doccode.Rule{ID: 11, NoDoccode: true, Active: true})
	assert.ErrorIs(t, err, errs.ErrConfiguration)
}

func TestRegister_BadTemplates(t *testing.T) {
	tests := []struct {
		name string
		rule  doccode.Rule
	}{
		{"unknown token", doccode.Rule{ID: 1, Pattern: `A`, Split: "nope"}},
		{"reversed slice", doccode.Rule{ID: 1, Pattern: `A`, Split: "3:1"}},
		{"missing group", doccode.Rule{ID: 1, Pattern: `A`, Split: "group:2"}},
		{"traversal literal", doccode.Rule{ID: 1, Pattern: `A`, Split: "'..'"}},
		{"hash too deep", doccode.Rule{ID: 1, Pattern: `A`, Split: "hash:40"}},
		{"format without verb", doccode.Rule{ID: 1, Pattern: `A`, Format: "A-"}},
		{"format two verbs", doccode.Rule{ID: 1, Pattern: `A`, Format: "%s-%s"}},
		{"negative width", doccode.Rule{ID: 1, Pattern: `A`, Width: -1}},
		{"no pattern", doccode.Rule{ID: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := doccode.NewRegistry(nil).Register(tt.rule)
			assert.ErrorIs(t, err, errs.ErrConfiguration)
		})
	}
}

func TestRegister_Sealed(t *testing.T) {
	reg, _ := setupRegistry(t)
	reg.Seal()
	_, err := reg.Register(doccode.Rule{ID: 3, Pattern: `X`, Active: true})
	assert.ErrorIs(t, err, errs.ErrConfiguration)
}

// --- Classify ---

func TestClassify(t *testing.T) {
	reg, _ := setupRegistry(t)

	r, code := reg.Classify("ADL-1234.pdf")
	require.NotNil(t, r)
	assert.Equal(t, 1, r.ID)
	assert.Equal(t, "ADL-1234", code)

	r, _ = reg.Classify("ADL-12345.pdf")
	assert.Nil(t, r, "pattern is anchored")

	r, _ = reg.Classify("CCC-4111111111111111.pdf")
	require.NotNil(t, r)
	assert.Equal(t, 2, r.ID)

	r, _ = reg.Classify("CCC-4111111111111112.pdf")
	assert.Nil(t, r, "luhn check fails")
}

func TestClassify_FirstMatchWins(t *testing.T) {
	reg := doccode.NewRegistry(nil)
	_, err := reg.Register(doccode.Rule{ID: 1, Pattern: `A.*`, Active: true})
	require.NoError(t, err)
	_, err = reg.Register(doccode.Rule{ID: 2, Pattern: `AB.*`, Active: true})
	require.NoError(t, err)

	r, _ := reg.Classify("ABC.txt")
	require.NotNil(t, r)
	assert.Equal(t, 1, r.ID)
}

func TestClassify_InactiveSkipped(t *testing.T) {
	reg := doccode.NewRegistry(nil)
	_, err := reg.Register(doccode.Rule{ID: 1, Pattern: `A.*`})
	require.NoError(t, err)
	r, _ := reg.Classify("ABC.txt")
	assert.Nil(t, r)
}

func TestClassify_Fallback(t *testing.T) {
	reg, _ := setupRegistry(t)
	_, err := reg.Register(doccode.Rule{ID: 9, Title: "No doccode", NoDoccode: true, Split: "hash:2", Active: true})
	require.NoError(t, err)

	// The fallback is evaluated last even though it was registered after.
	r, code := reg.Classify("holiday photo.jpg")
	require.NotNil(t, r)
	assert.Equal(t, 9, r.ID)
	assert.Equal(t, "holiday photo", code)

	r, _ = reg.Classify("ADL-0001.pdf")
	assert.Equal(t, 1, r.ID)
}

func TestClassify_Deterministic(t *testing.T) {
	reg, _ := setupRegistry(t)
	rapid.Check(t, func(t *rapid.T) {
		name := rapid.StringMatching(`(ADL-[0-9]{4}|CCC-[0-9]{16}|[a-z]{1,8})\.(pdf|jpg)`).Draw(t, "name")
		r1, c1 := reg.Classify(name)
		r2, c2 := reg.Classify(name)
		if r1 != r2 || c1 != c2 {
			t.Fatalf("classify(%q) not deterministic", name)
		}
	})
}

// --- AllocateIdentifier ---

func TestAllocateIdentifier_Sequence(t *testing.T) {
	reg, _ := setupRegistry(t)
	r, err := reg.Get(1)
	require.NoError(t, err)

	code, err := reg.AllocateIdentifier(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, "ADL-1001", code)

	code, err = reg.AllocateIdentifier(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, "ADL-1002", code)
}

func TestAllocateIdentifier_Exhausted(t *testing.T) {
	reg, seq := setupRegistry(t)
	r, err := reg.Get(1)
	require.NoError(t, err)
	seq.SetLast(1, 9998)

	code, err := reg.AllocateIdentifier(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, "ADL-9999", code)

	_, err = reg.AllocateIdentifier(context.Background(), r)
	assert.ErrorIs(t, err, errs.ErrSequenceExhausted)

	last, _ := seq.Last(1)
	assert.Equal(t, int64(9999), last, "exhaustion must not consume a number")
}

func TestAllocateIdentifier_PatternMismatchKeepsNumber(t *testing.T) {
	seq := doccode.NewMemorySequencer()
	reg := doccode.NewRegistry(seq)
	r, err := reg.Register(doccode.Rule{
		ID: 5, Pattern: `INV-[0-8][0-9]{3}`, Split: "0:3,4:", Format: "INV-%s", Width: 4, Active: true,
	})
	require.NoError(t, err)
	seq.SetLast(5, 8998)

	code, err := reg.AllocateIdentifier(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, "INV-8999", code)

	for range 2 {
		_, err = reg.AllocateIdentifier(context.Background(), r)
		assert.ErrorIs(t, err, errs.ErrSequenceExhausted)
		last, _ := seq.Last(5)
		assert.Equal(t, int64(8999), last, "a refused code must not consume a number")
	}
}

func TestAllocateIdentifier_UnpaddedOverflow(t *testing.T) {
	seq := doccode.NewMemorySequencer()
	reg := doccode.NewRegistry(seq)
	r, err := reg.Register(doccode.Rule{
		ID: 6, Pattern: `TKT-[0-9]{1,3}`, Split: "0:3,4:", Format: "TKT-%s", Active: true,
	})
	require.NoError(t, err)
	seq.SetLast(6, 999)

	_, err = reg.AllocateIdentifier(context.Background(), r)
	assert.ErrorIs(t, err, errs.ErrSequenceExhausted)
	last, ok := seq.Last(6)
	assert.True(t, ok)
	assert.Equal(t, int64(999), last)
}

func TestAllocateIdentifier_NoFormat(t *testing.T) {
	reg, _ := setupRegistry(t)
	r, err := reg.Get(2)
	require.NoError(t, err)
	_, err = reg.AllocateIdentifier(context.Background(), r)
	assert.ErrorIs(t, err, errs.ErrConfiguration)
}

func TestAllocateIdentifier_Concurrent(t *testing.T) {
	reg, _ := setupRegistry(t)
	r, err := reg.Get(1)
	require.NoError(t, err)

	const n = 64
	var mu sync.Mutex
	var codes []string

	g, ctx := errgroup.WithContext(context.Background())
	for range n {
		g.Go(func() error {
			code, err := reg.AllocateIdentifier(ctx, r)
			if err != nil {
				return err
			}
			mu.Lock()
			codes = append(codes, code)
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())

	sort.Strings(codes)
	require.Len(t, codes, n)
	for i, c := range codes {
		assert.Equal(t, fmt.Sprintf("ADL-%04d", 1001+i), c)
	}
}

// --- Split ---

func TestSplit(t *testing.T) {
	reg, _ := setupRegistry(t)
	r, err := reg.Get(1)
	require.NoError(t, err)

	segs, err := reg.Split(r, "ADL-1234")
	require.NoError(t, err)
	assert.Equal(t, []string{"ADL", "1234"}, segs)

	_, err = reg.Split(r, "XYZ-1234")
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = reg.Split(r, "../etc")
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestSplit_LiteralAndGroup(t *testing.T) {
	reg, _ := setupRegistry(t)
	r, err := reg.Get(2)
	require.NoError(t, err)

	segs, err := r.SplitCode("CCC-4111111111111111")
	require.NoError(t, err)
	assert.Equal(t, []string{"CCC", "cards", "CCC-4111111111111111"}, segs)
}

func TestSplit_HashFanOut(t *testing.T) {
	reg := doccode.NewRegistry(nil)
	r, err := reg.Register(doccode.Rule{ID: 9, NoDoccode: true, Split: "hash:2", Active: true})
	require.NoError(t, err)

	segs, err := r.SplitCode("holiday photo")
	require.NoError(t, err)
	require.Len(t, segs, 2)
	for _, s := range segs {
		assert.Len(t, s, 2)
	}
}

func TestSplit_Pure(t *testing.T) {
	// Two registries built independently must agree, whatever the order.
	a := doccode.NewRegistry(nil)
	b := doccode.NewRegistry(nil)
	ra, err := a.Register(adlRule())
	require.NoError(t, err)
	_, err = b.Register(doccode.Rule{ID: 7, Pattern: `Z.*`, Active: true})
	require.NoError(t, err)
	rb, err := b.Register(adlRule())
	require.NoError(t, err)

	rapid.Check(t, func(t *rapid.T) {
		code := rapid.StringMatching(`ADL-[0-9]{4}`).Draw(t, "code")
		s1, err1 := ra.SplitCode(code)
		s2, err2 := rb.SplitCode(code)
		s3, _ := ra.SplitCode(code)
		if err1 != nil || err2 != nil {
			t.Fatalf("split(%q): %v %v", code, err1, err2)
		}
		if fmt.Sprint(s1) != fmt.Sprint(s2) || fmt.Sprint(s1) != fmt.Sprint(s3) {
			t.Fatalf("split(%q) differs: %v %v %v", code, s1, s2, s3)
		}
	})
}
