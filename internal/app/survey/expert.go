package survey

// ExpertKey is the expert-endorsed direction of every belief item.
var ExpertKey = []int{
	1, 1, -1, -1, 1, 1, -1, 1, 1, 1,
	1, -1, 1, 1, 1, -1, -1, 1, 1, 1,
	-1, 1, 1, 1, -1, 1, -1, -1, -1, 1,
}

// ExpertMarkKey is the expert-endorsed direction of every importance item.
var ExpertMarkKey = []int{
	1, -1, -1, 1, 1, 1, 1, 1, 1, -1,
	1, 1, -1, -1, 1, 1, -1, 1, 1, -1,
	1, -1, -1,
}
