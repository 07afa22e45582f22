package mathhelp

func BetweenInc(f, p, q int64) bool {
	if p <= q {
		return p <= f && f <= q
	}
	return q <= f && f <= p
}

func Pow2(n uint) int64 {
	return 1 << n
}

func MinInt(p, q int) int {
	if p < q {
		return p
	}
	return q
}
