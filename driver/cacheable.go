package driver

// cacheableText decides whether a statement's text may participate in the
// shared statement cache. Text using only unnamed positional markers
// ("?", "?3") is excluded: such statements are characteristically rebound
// in tight loops in ways incompatible with safe reuse of a shared handle.
// Text with named markers (":a", "@a", "$a") is admitted, including text
// mixing named and positional markers. This predicate is caller-visible
// behavior: whether a statement caches determines whether its handle
// survives the execution.
func cacheableText(sql string) bool {
	var positional, named = scanMarkers(sql)
	return !positional || named
}

// scanMarkers reports whether sql contains positional and/or named
// parameter markers, ignoring markers inside string literals, quoted
// identifiers, and comments.
func scanMarkers(sql string) (positional, named bool) {
	for i := 0; i < len(sql); i++ {
		switch c := sql[i]; c {
		case '\'', '"', '`':
			// A literal or quoted identifier; a doubled quote escapes.
			for i++; i < len(sql); i++ {
				if sql[i] != c {
					continue
				} else if i+1 < len(sql) && sql[i+1] == c {
					i++
				} else {
					break
				}
			}
		case '[':
			// Bracket-quoted identifier.
			for i++; i < len(sql) && sql[i] != ']'; i++ {
			}
		case '-':
			if i+1 < len(sql) && sql[i+1] == '-' {
				for i += 2; i < len(sql) && sql[i] != '\n'; i++ {
				}
			}
		case '/':
			if i+1 < len(sql) && sql[i+1] == '*' {
				for i += 2; i+1 < len(sql); i++ {
					if sql[i] == '*' && sql[i+1] == '/' {
						i++
						break
					}
				}
			}
		case '?':
			positional = true
			for i+1 < len(sql) && sql[i+1] >= '0' && sql[i+1] <= '9' {
				i++
			}
		case ':', '@', '$':
			if i+1 < len(sql) && isParamNameByte(sql[i+1]) {
				named = true
				for i+1 < len(sql) && isParamNameByte(sql[i+1]) {
					i++
				}
			}
		}
	}
	return
}

func isParamNameByte(b byte) bool {
	return b == '_' || ('0' <= b && b <= '9') || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z')
}
