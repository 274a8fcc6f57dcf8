package bot

// User facing texts
const (
	startText = "Hello! Use /search <query> to find torrents on 1337x."
	helpText  = "Use /search <query> to find torrents on 1337x.\n\n" +
		"The five best results are sent one by one. Below them you can page through the rest " +
		"or publish all of them to a Telegraph page."
	usageText = "Please provide a search term. Usage: /search <query>"

	searchStatusText    = "🔎 Searching 1337x for \"%s\"..."
	searchProgressText  = "🔎 Searching 1337x for \"%s\"... %s"
	searchCompletedText = "🔎 Search completed! Found %d results."
	searchFailedText    = "An error occurred during the search."
	noResultsText       = "No results found. Please try a different query."

	viewAllPromptText = "Click below to view all search results."
	viewAllButton     = "View All Results"
	prevButton        = "◀ Prev"
	nextButton        = "Next ▶"
	mirrorButton      = "☁️ Mirror"
	pageHeaderText    = "📄 Page %d/%d for \"%s\"\n\n"
	pageTruncatedText = "…more results on the Telegraph page.\n"

	publishedText = "All search results are available [here](%s)."
	pageTitle     = "Search Results"

	mirrorStartedText = "☁️ Mirroring torrent %d..."
	mirroredText      = "✅ Torrent added to Seedr: %s"
	mirrorFailedText  = "❌ Failed to mirror the torrent."

	torrentNotFoundText = "⚠️ Torrent not found. Please run /search again."
	resultsNotFoundText = "⚠️ These results are no longer available. Please run /search again."

	genericErrorText = "An unexpected error occurred. Please try again later."
)

// Callback data
const (
	showTelegraphData = "show_telegraph"
	showPagePrefix    = "show_"
	mirrorPrefix      = "mirror_"
)
