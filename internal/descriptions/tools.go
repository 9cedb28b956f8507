package descriptions

// Comprehensive tool descriptions with practical examples and use cases

const (
	// Document pipeline
	DiagramLoadDescription = `Load a question paper PDF and extract its questions.

**When to use:** At the start of every session, before any detection, matching or rendering.

**Why it's useful:** Opens the document once, splits every page into numbered questions, and flags the ones whose text mentions a figure or table so you know where diagrams are expected.

**Examples:**
• Start a conversion: "Load physics-2024.pdf and tell me how many questions it has"
• Pre-flight check: "Load the paper and report which questions mention figures"

**Common workflows:**
1. Conversion Pipeline: diagram_load → diagram_detect → diagram_match → diagram_render per question
2. Scanned Papers: diagram_load (no text layer) → region_add manually → region_assign

**Best practices:** Keep the returned document_id; every other tool needs it. Scanned papers load fine but yield zero questions, so expect manual region work.`

	DiagramDetectDescription = `Run AI diagram detection over a loaded document's pages.

**When to use:** After diagram_load, when the paper contains figures, graphs, tables or circuit drawings that must become images in the test.

**Why it's useful:** Rasterizes each page, asks the vision model for diagram bounding boxes, validates every box against the page, and keeps going when individual pages fail so one bad page never sinks the batch.

**Examples:**
• Whole paper: "Detect diagrams in document abc123"
• Targeted re-run: "Re-detect pages 4-6,9 after the first pass failed on them"

**Common workflows:**
1. Full Pass: detect all pages → review failures → re-detect just the failed pages
2. Incremental: detect → match → spot a missed diagram → region_add by hand

**Best practices:** Check the failed-pages section of the result; failures carry the stage (rasterize, detect, parse) and are safe to retry page-by-page.`

	DiagramMatchDescription = `Assign detected diagram regions to the document's questions.

**When to use:** After detection (or manual region drawing) has produced regions, to decide which diagram belongs to which question.

**Why it's useful:** Prefers explicit caption labels like "Figure 5.1" over page proximity, falls back to same-page then adjacent-page placement, and reports both orphan regions and questions that still need manual attention instead of guessing.

**Examples:**
• Normal flow: "Match regions to questions for document abc123"
• Audit: "Run matching and list the questions that still need a diagram"

**Common workflows:**
1. Automatic: diagram_detect → diagram_match → render matched regions
2. Cleanup: diagram_match → region_assign each orphan → diagram_match again to verify

**Best practices:** A question flagged as needing manual assignment keeps its flag; resolve it with region_assign rather than re-running the matcher.`

	DiagramRenderDescription = `Render one diagram region as a base64 PNG at a resolution tier.

**When to use:** Whenever the test interface needs the actual image for a region - thumbnails for lists, preview for reading, full for zoom.

**Why it's useful:** Crops the region from the source page on demand and caches the result, so repeated views of the same region version are instant and nothing is rendered ahead of need.

**Examples:**
• Question view: "Render region r42 at preview tier"
• Zoom: "Render r42 at full tier"

**Common workflows:**
1. Viewport: render visible question at preview → upcoming questions at thumbnail
2. Editing: region_update → render again (the cache was invalidated for you)

**Best practices:** Tiers are thumbnail, preview and full. A region whose document was removed renders as a typed unavailable error, not a crash - reload the document to recover.`

	// Manual region editing
	RegionAddDescription = `Add a manually drawn diagram region to a page.

**When to use:** When detection missed a diagram, or the paper is scanned and has no text layer to drive detection.

**Why it's useful:** Accepts a normalized box, runs the same validation as AI detection (clamping, minimum size, grid snap), and stores the region at full confidence so matching and rendering treat it like any other.

**Examples:**
• Missed figure: "Add a region on page 3 at x=0.1 y=0.4 width=0.5 height=0.3"
• Labeled table: "Add a table region on page 7 labeled 'Table 2'"

**Best practices:** Coordinates are fractions of the page in [0,1] from the top-left corner. Give a label when the caption is visible - labels make matching exact.`

	RegionUpdateDescription = `Move or resize an existing region; bumps its version and invalidates cached renders.

**When to use:** When a detected box is slightly off - too tight, too loose, or clipping the caption.

**Why it's useful:** Applies the same sanitization as detection, records what was corrected, increments the region version and drops every cached render of the old geometry so stale images can never be served.

**Examples:**
• Nudge: "Widen region r17 to include the axis labels"

**Best practices:** The response lists any sanitizer corrections; a drop error means the new box was degenerate or off-page and the stored region is unchanged.`

	RegionDeleteDescription = `Delete a diagram region and scrub its question assignments.

**When to use:** When detection produced a false positive (a header, a logo, stray marks).

**Why it's useful:** Removes the region, its cached renders at every tier and version, and its entry in any question's diagram list in one step, leaving no dangling references.

**Best practices:** Deletion is permanent; re-detect or region_add to bring a region back.`

	RegionAssignDescription = `Manually assign an orphan region to a question.

**When to use:** After diagram_match reports orphan regions or questions needing manual assignment.

**Why it's useful:** Attaches the region, marks the question as diagram-bearing, and is idempotent - assigning twice is harmless.

**Examples:**
• Resolve an orphan: "Assign region r9 to question q-12"

**Best practices:** Use the IDs exactly as diagram_match printed them; unknown IDs are rejected without side effects.`

	// Session
	ServerInfoDescription = `Get server information, loaded documents and cache statistics.

**When to use:** To check what is loaded, whether the vision backend is available, and how the render cache is performing.

**Why it's useful:** One call shows document and region counts, vision provider status, cache hit rate and memory use - everything needed to judge session health.

**Best practices:** A disabled vision backend means detection is off but manual regions and rendering still work fully.`
)
