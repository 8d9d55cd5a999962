package ingredients

import (
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"fullwidth brackets and colon", "원재료명（국산）：밀가루·대두", "원재료명 국산 :밀가루,대두"},
		{"ascii and lenticular brackets", "설탕(국산)[정제]【수입】", "설탕 국산 정제 수입"},
		{"no-break spaces", "a\u00a0\u00a0b", "a b"},
		{"line separator", "a\u2028b", "a\nb"},
		{"bullet", "우유•대두", "우유,대두"},
		{"whitespace runs", "  line one \n\n  line two\t\t end  ", "line one\nline two end"},
		{"crlf", "a \r\n b", "a\nb"},
		{"ideographic space", "밀가루　설탕", "밀가루 설탕"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	alphabet := []rune{
		'a', 'Z', '1', '가', '힣', '밀', ',', ':', '：', '(', ')', '[', ']', '（', '）', '［', '］',
		'【', '】', '·', '•', ' ', '\u00a0', '\u3000', '\u2028', '\t', '\n', '\r', 'Ａ', '①',
	}
	properties := gopter.NewProperties(nil)

	properties.Property("Normalize(Normalize(s)) == Normalize(s)", prop.ForAll(
		func(idx []int) bool {
			var b strings.Builder
			for _, i := range idx {
				b.WriteRune(alphabet[i])
			}
			once := Normalize(b.String())
			return Normalize(once) == once
		},
		gen.SliceOf(gen.IntRange(0, len(alphabet)-1)),
	))

	properties.Property("no leading, trailing or doubled whitespace", prop.ForAll(
		func(idx []int) bool {
			var b strings.Builder
			for _, i := range idx {
				b.WriteRune(alphabet[i])
			}
			out := Normalize(b.String())
			return out == strings.TrimSpace(out) &&
				!strings.Contains(out, "  ") &&
				!strings.Contains(out, "\n\n") &&
				!strings.Contains(out, " \n") &&
				!strings.Contains(out, "\n ")
		},
		gen.SliceOf(gen.IntRange(0, len(alphabet)-1)),
	))

	properties.TestingRun(t)
}

func TestLines(t *testing.T) {
	assert.Equal(t, []string{"원재료명: 밀가루", "우유 함유"}, Lines("\n 원재료명: 밀가루 \n\n\t우유 함유\n"))
	assert.Empty(t, Lines("   "))
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "korean ingredient label",
			text: "원재료명: 밀가루, 대두, 우유",
			want: []string{"밀가루", "대두", "우유"},
		},
		{
			name: "korean label with spaced characters",
			text: "원 재 료 명 : 정제수, 설탕",
			want: []string{"정제수", "설탕"},
		},
		{
			name: "english label",
			text: "Ingredients: Wheat flour, sugar, MILK (2%)",
			want: []string{"Wheat", "flour", "sugar", "MILK", "2"},
		},
		{
			name: "every contains list is scanned",
			text: "밀, 대두 함유\n우유, 계란 포함",
			want: []string{"밀", "대두", "우유", "계란"},
		},
		{
			name: "stop words and single letters dropped",
			text: "원재료명: 밀가루, 나트륨, F, 등, 및 설탕, 1",
			want: []string{"밀가루", "설탕", "1"},
		},
		{
			name: "case-insensitive dedup keeps first spelling",
			text: "Ingredients: Milk, milk, MILK, sugar",
			want: []string{"Milk", "sugar"},
		},
		{
			name: "allergy declaration",
			text: "알레르기 유발물질: 우유, 대두",
			want: []string{"우유", "대두"},
		},
		{
			name: "contains label",
			text: "Contains: peanuts; tree nuts",
			want: []string{"peanuts", "tree", "nuts"},
		},
		{
			name: "no labels",
			text: "맛있는 과자",
			want: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.text)
			assert.Equal(t, tt.want, got)
			for _, tok := range got {
				assert.False(t, IsStopword(tok), tok)
			}
		})
	}
}

func TestExtract_DropsOverlongTokens(t *testing.T) {
	long := strings.Repeat("가", 31)
	assert.Equal(t, []string{"설탕"}, Extract("원재료명: "+long+", 설탕"))
}

func TestExtract_CapsTokenCount(t *testing.T) {
	items := make([]string, 300)
	for i := range items {
		items[i] = fmt.Sprintf("item%d", i)
	}
	got := Extract("Ingredients: " + strings.Join(items, ", "))
	assert.Len(t, got, MaxTokens)
	assert.Equal(t, "item0", got[0])
	assert.Equal(t, "item249", got[MaxTokens-1])
}

func TestChunks_Order(t *testing.T) {
	text := "Ingredients: sugar.\n원재료명: 설탕.\n밀 함유\n알레르기 정보: 우유\nContains: soy"
	assert.Equal(t, []string{"sugar.", "설탕.", "밀", "우유", "soy"}, Chunks(text))
}

func TestChunks_ContainsListSpansLines(t *testing.T) {
	assert.Equal(t, []string{"설탕\n밀"}, Chunks("제품: 설탕\n밀 함유"))
}

func TestUnique(t *testing.T) {
	assert.Equal(t, []string{"A", "b"}, Unique([]string{"A", "a", "b", "B"}))
	assert.Empty(t, Unique(nil))
}
