package game

var Colors = []string{
	"#60a5fa",
	"#34d399",
	"#fbbf24",
	"#a78bfa",
	"#fb7185",
	"#22c55e",
}

var Avatars = []string{"🚗", "🚙", "🚕", "🚌", "🚓", "🚘"}

func paletteFor(n int) (color, avatar string) {
	return Colors[n%len(Colors)], Avatars[n%len(Avatars)]
}
