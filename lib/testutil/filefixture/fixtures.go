package filefixture

var Alpha Fixture = Fixture{"Alpha",
	[]FixtureFile{
		{Path: "a", Body: []byte("alpha\n")},
		{Path: "b/", Mode: 0750},
		{Path: "b/c", Body: []byte("zyx")},
		{Path: "b/run", Mode: 0755, Body: []byte("#!/bin/sh\necho hi\n")},
		{Path: "d/"},
		{Path: "e", Link: "a"},
	},
}

// Beta differs from Alpha only in the body of one nested file.
var Beta Fixture = Fixture{"Beta",
	[]FixtureFile{
		{Path: "a", Body: []byte("alpha\n")},
		{Path: "b/", Mode: 0750},
		{Path: "b/c", Body: []byte("zyxw")},
		{Path: "b/run", Mode: 0755, Body: []byte("#!/bin/sh\necho hi\n")},
		{Path: "d/"},
		{Path: "e", Link: "a"},
	},
}

var All []Fixture = []Fixture{
	Alpha,
	Beta,
}
