package book

// Section is one present section of the book in presentation order. Page is
// the 1-based page the section starts on when every section begins a new
// page.
type Section struct {
	Kind    SectionKind
	Title   string
	Chapter *Chapter
	Page    int
}

// Plan builds ordered list of sections which have data and only then
// numbers them. Cover and back cover are always present, everything else is
// omitted when empty.
func Plan(info *Info) []Section {
	var plan []Section
	add := func(kind SectionKind, title string, present bool) {
		if present {
			plan = append(plan, Section{Kind: kind, Title: title})
		}
	}

	add(SectionCover, info.Title, true)
	add(SectionDedication, "Dedication", info.Dedication != "")
	add(SectionPreface, "Preface", !info.Preface.IsEmpty())
	add(SectionContents, "Table of Contents", len(info.TableOfContents) > 0)
	add(SectionIntroduction, "Introduction", info.Introduction != "")
	for i := range info.Chapters {
		plan = append(plan, Section{Kind: SectionChapter, Title: info.Chapters[i].Heading(), Chapter: &info.Chapters[i]})
	}
	add(SectionGlossary, "Glossary", len(info.Glossary) > 0)
	add(SectionIndex, "Index", len(info.Index) > 0)
	add(SectionReferences, "References", !info.References.IsEmpty())
	add(SectionBackCover, "Back Cover", true)

	for i := range plan {
		plan[i].Page = i + 1
	}
	return plan
}

// PageCount is number of pages in the plan.
func PageCount(info *Info) int {
	return len(Plan(info))
}

// ChapterPage returns starting page of the chapter in plan, 0 if absent.
func ChapterPage(plan []Section, number int) int {
	for _, s := range plan {
		if s.Kind == SectionChapter && s.Chapter.Number == number {
			return s.Page
		}
	}
	return 0
}
