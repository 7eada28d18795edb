// Package coins breaks integer balances down into the machine's fixed
// coin denomination set.
package coins

// Denominations accepted by the machine, largest first.
var Denominations = []int{100, 50, 20, 10, 5}

// IsDenomination reports whether v is a single coin the machine accepts.
func IsDenomination(v int) bool {
	for _, d := range Denominations {
		if v == d {
			return true
		}
	}
	return false
}

// MakeChange converts amount into a greedy coin breakdown. Only
// denominations with a non-zero count appear in the result. The breakdown
// sums back to amount as long as amount is a non-negative combination of
// the denomination set; a residual below 5 is dropped, so callers must
// only pass balances built from valid deposits.
func MakeChange(amount int) map[int]int {
	change := make(map[int]int)
	for _, coin := range Denominations {
		if count := amount / coin; count > 0 {
			change[coin] = count
			amount -= count * coin
		}
	}
	return change
}

// Total sums a breakdown back into a single amount.
func Total(change map[int]int) int {
	total := 0
	for coin, count := range change {
		total += coin * count
	}
	return total
}
