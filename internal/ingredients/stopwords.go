package ingredients

// stopwords are label words that are never ingredients: section headers,
// nutrition facts, manufacturer and distribution metadata, and quantity
// qualifiers. Matching is exact.
var stopwords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		// headers
		"원재료", "원재료명", "영양", "영양정보", "영양성분", "알레르기", "알레르겐", "함유", "포함",
		// nutrition facts
		"나트륨", "탄수화물", "단백질", "지방", "당류", "열량", "칼로리", "포화지방", "트랜스지방", "콜레스테롤",
		// manufacturer and distribution
		"대한", "대한민국", "한국", "제조", "제조원", "판매원", "고객", "상담", "유통", "보관", "냉장", "냉동",
		"식품유형", "내용량", "중량", "용량", "규격", "원산지", "수입", "수입원", "유통기한", "소비기한",
		// qualifiers
		"기타", "등", "및", "이상", "이하", "미만", "약", "정도", "함량", "기준", "일일", "권장",
	} {
		stopwords[w] = struct{}{}
	}
}

// IsStopword reports whether tok is label vocabulary rather than an
// ingredient.
func IsStopword(tok string) bool {
	_, ok := stopwords[tok]
	return ok
}
