package review

import "sync"

// pageView is the server-side rendering surface. There is no real layout
// engine behind the HTTP API, so pages settle immediately and scroll targets
// are recorded for the client to apply.
type pageView struct {
	mu         sync.Mutex
	activePage int
	tokenRel   int
	fieldPath  []string
}

func newPageView() *pageView {
	return &pageView{activePage: 1, tokenRel: -1}
}

func (v *pageView) ActivePage() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.activePage
}

func (v *pageView) ShowPage(page int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.activePage = page
	v.tokenRel = -1
	v.fieldPath = nil
}

func (v *pageView) AfterSettle(fn func()) {
	fn()
}

func (v *pageView) ScrollTokenIntoView(pageRel int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tokenRel = pageRel
}

func (v *pageView) ScrollFieldIntoView(path []string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fieldPath = append([]string(nil), path...)
}

// ScrollState reports the latest scroll targets for the client. tokenRel is
// -1 when no token scroll is pending.
func (v *pageView) ScrollState() (tokenRel int, fieldPath []string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.tokenRel, v.fieldPath
}
