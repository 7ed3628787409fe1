package parser

// parsePairs is the last resort: paragraphs are paired two at a time in order.
// A trailing unpaired paragraph is dropped.
func parsePairs(text string) []Turn {
	paras := splitParagraphs(text)

	var pairs [][2]string
	i := 0
	for i+1 < len(paras) {
		q, a := paras[i], paras[i+1]
		if q == "" || a == "" {
			i++
			continue
		}
		pairs = append(pairs, [2]string{q, a})
		i += 2
	}
	return numberTurns(pairs)
}
