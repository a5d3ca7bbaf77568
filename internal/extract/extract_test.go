package extract

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/hnreader/internal/preview"
)

func TestExtractEmptyHead(t *testing.T) {
	t.Parallel()

	got := Extract("<html><head></head></html>")
	require.True(t, got.IsEmpty(), "expected all fields absent, got %+v", got)
}

func TestExtractGarbage(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"", "not html at all", "<meta content=", "<<<>>>"} {
		require.NotPanics(t, func() { Extract(input) })
	}
}

func TestExtractTitleAndDescription(t *testing.T) {
	t.Parallel()

	got := Extract(`<!doctype html><html><head><title>Ex</title>
<meta name="description" content="<b>Hi</b> there"></head>`)
	require.Equal(t, "Ex", *got.Title)
	require.Equal(t, "<b>Hi</b> there", *got.Description)
	require.Nil(t, got.Domain)
	require.Nil(t, got.ImageURL)
}

func TestExtractOpenGraph(t *testing.T) {
	t.Parallel()

	got := Extract(`<!DOCTYPE html><html><head>
<meta property="og:title" content="  OG Title  ">
<meta property="og:description" content="OG description">
<meta property="og:url" content="https://www.example.com/articles/1">
<meta property="og:image" content="/img/cover.png">
</head>`)

	require.Equal(t, "OG Title", *got.Title)
	require.Equal(t, "OG description", *got.Description)
	require.Equal(t, "www.example.com", *got.Domain)
	require.Equal(t, "https://www.example.com/img/cover.png", *got.ImageURL)
}

func TestExtractPrefersTitleElement(t *testing.T) {
	t.Parallel()

	got := Extract(`<head><title>Element</title><meta property="og:title" content="OG"></head>`)
	require.Equal(t, "Element", *got.Title)
}

func TestExtractTwitterFallbacks(t *testing.T) {
	t.Parallel()

	got := Extract(`<head>
<meta name="twitter:title" content="Tweet title">
<meta name="twitter:description" content="Tweet description">
<meta name="twitter:image" content="https://cdn.example.org/card.jpg">
</head>`)
	require.Equal(t, "Tweet title", *got.Title)
	require.Equal(t, "Tweet description", *got.Description)
	require.Equal(t, "https://cdn.example.org/card.jpg", *got.ImageURL)
}

func TestExtractDomainFromCanonical(t *testing.T) {
	t.Parallel()

	got := Extract(`<head><link rel="canonical" href="https://news.example.net/story?id=1"></head>`)
	require.Equal(t, "news.example.net", *got.Domain)
}

func TestExtractRelativeImageWithoutBaseIsDropped(t *testing.T) {
	t.Parallel()

	got := Extract(`<head><title>T</title><meta property="og:image" content="/img.png"></head>`)
	require.Nil(t, got.ImageURL)
}

func TestExtractSkipsEmptyContent(t *testing.T) {
	t.Parallel()

	got := Extract(`<head><title>   </title><meta property="og:title" content=""><meta name="twitter:title" content="Fallback"></head>`)
	require.Equal(t, "Fallback", *got.Title)
}

func TestExtractTruncatedHead(t *testing.T) {
	t.Parallel()

	got := Extract(`<!doctype html><html><head><title>Cut</title><meta property="og:descr`)
	require.Equal(t, "Cut", *got.Title)
	require.Nil(t, got.Description)
}

func TestExtractorImplementsPipelineInterfaces(t *testing.T) {
	t.Parallel()

	var (
		e preview.Extractor = New()
		s preview.Sanitizer = New()
	)
	require.Equal(t, "Ex", *e.Extract("<title>Ex</title>").Title)
	require.Equal(t, "ab", s.StripTags("<p>a</p>b"))
}
