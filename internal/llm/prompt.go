package llm

// buildPrompt creates the extraction instruction sent alongside every page image.
func buildPrompt() string {
	return `You are an invoice extraction assistant. You are given one image per page of a bill or invoice, in page order starting at page 1.

For each page image provided, extract every billed line-item:
- item_name: the description of the item exactly as printed
- item_quantity: the quantity billed (use 1 if no quantity is printed)
- item_rate: the unit rate if available, otherwise null
- item_amount: the line total (net amount) for the item

RULES:
- Numbers must be plain JSON numbers without currency symbols or thousands separators
- Do not include sub-totals, taxes summaries, discounts summaries or grand totals as line-items
- Report an item only on the page where it is printed
- If something could not be read, describe it in "issues" instead of guessing

Return ONLY JSON in exactly this shape:
{"pages":[{"page_no":"1","line_items":[{"item_name":"...","item_quantity":1,"item_rate":0.0,"item_amount":0.0}]}],"issues":[]}`
}
