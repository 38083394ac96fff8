package matcher

// Keyword buckets scanned against lower-cased descriptions, in order.
// First bucket with any keyword hit wins. This is a tunable policy
// table: editing keywords changes classification coverage, not the
// matching algorithm.
type bucket struct {
	name     string
	keywords []string
}

var buckets = []bucket{
	{"food", []string{
		"starbucks", "mcdonald", "kfc", "subway", "pizza", "restaurant",
		"cafe", "coffee", "dining", "food", "grocery", "market",
	}},
	{"transportation", []string{
		"uber", "lyft", "taxi", "metro", "transit", "parking", "gas",
		"fuel", "airlines", "flight",
	}},
	{"entertainment", []string{
		"movie", "theater", "netflix", "spotify", "hulu", "climbing",
		"gym", "entertainment",
	}},
	{"shopping", []string{
		"amazon", "target", "walmart", "store", "shop", "bicycle",
		"sparkfun", "tectra",
	}},
	{"income", []string{
		"salary", "deposit", "payment", "interest", "intrst", "pymnt",
		"refund",
	}},
	{"bills", []string{
		"electric", "water", "utility", "phone", "internet", "cable",
		"credit card", "automatic payment",
	}},
}
