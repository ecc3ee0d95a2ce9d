package content

// Default is served when no content file is deployed.
func Default() Profile {
	return Profile{
		Name:  "Zach",
		Title: "Software Developer",
		About: `I love building software that's both useful and fun, and I'm always curious about how things work behind the scenes.
Most of my projects start with a simple idea and turn into a chance to learn something new, whether it's exploring a
different language, experimenting with tools, or solving tricky problems.`,
		Skills: []SkillGroup{
			{Category: "Languages", Items: []string{"Go", "Python", "JavaScript"}},
			{Category: "Web", Items: []string{"Gin", "HTMX", "Tailwind CSS"}},
		},
		Experience: []Entry{
			{
				Title:        "Presentation Expert",
				Organization: "Target",
				Start:        "Aug 2023",
				End:          "Present",
				Highlights: []string{
					"Executed over 300 merchandising transitions on tight timelines by organizing team workflows",
				},
			},
		},
		Education: []Entry{
			{
				Title:        "Bachelor of Computer Science",
				Organization: "Western Governors University",
				Start:        "Sept 2019",
				End:          "May 2023",
			},
		},
		Projects: []Project{
			{
				Name:        "Terminal mail client",
				Description: "A terminal-based email client built in Go with fuzzyfinder capabilities using a TUI framework and go-imap.",
				Tags:        []string{"Go", "TUI", "IMAP"},
			},
			{
				Name:        "Portfolio",
				Description: "This site: a Go and Gin backend with a stats proxy and a contact relay.",
				Tags:        []string{"Go", "Gin"},
			},
		},
	}
}
