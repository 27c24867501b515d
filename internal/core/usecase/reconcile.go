package usecase

import (
	"strings"

	"github.com/alphaboard/research-qa/internal/core/domain"
)

// CitationReconciler maps raw provenance tokens on citations back to
// catalog document ids. Unresolved citations are kept, never dropped.
type CitationReconciler struct{}

func NewCitationReconciler() *CitationReconciler {
	return &CitationReconciler{}
}

type catalogIndex struct {
	docs    []domain.CatalogDocument
	byRef   map[string]int
	byURI   map[string]int
	idIndex map[string]int
}

func buildCatalogIndex(docs []domain.CatalogDocument) *catalogIndex {
	idx := &catalogIndex{
		docs:    docs,
		byRef:   make(map[string]int, len(docs)),
		byURI:   make(map[string]int, len(docs)),
		idIndex: make(map[string]int, len(docs)),
	}
	for i, doc := range docs {
		idx.idIndex[doc.ID] = i
		if doc.ExternalRef != "" {
			idx.byRef[strings.ToLower(doc.ExternalRef)] = i
		}
		if doc.Filename != "" {
			idx.byURI[strings.ToLower(doc.Filename)] = i
		}
	}
	return idx
}

// Reconcile resolves each citation in place and returns the relevant
// document set for the response: documents referenced by ranked chunks,
// plus documents referenced by resolved citations, falling back to the
// whole searched set only when both are empty.
func (r *CitationReconciler) Reconcile(
	citations []domain.Citation,
	ranked []domain.RankedChunk,
	searched []domain.CatalogDocument,
) ([]domain.Citation, []domain.RelevantDocument) {
	idx := buildCatalogIndex(searched)

	for i := range citations {
		if doc, ok := idx.resolve(citations[i].DocumentRef); ok {
			id := doc.ID
			title := doc.Title
			citations[i].ResolvedDocumentID = &id
			citations[i].ResolvedTitle = &title
		}
	}

	seen := make(map[string]struct{}, len(searched))
	relevant := make([]domain.RelevantDocument, 0, len(searched))
	appendDoc := func(id string) {
		pos, ok := idx.idIndex[id]
		if !ok {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		doc := idx.docs[pos]
		relevant = append(relevant, domain.RelevantDocument{
			ID:       doc.ID,
			Title:    doc.Title,
			Filename: doc.Filename,
		})
	}

	for _, chunk := range ranked {
		if chunk.DocumentID != "" {
			appendDoc(chunk.DocumentID)
		} else if doc, ok := idx.resolve(chunk.DocumentURI); ok {
			appendDoc(doc.ID)
		}
	}
	for _, citation := range citations {
		if citation.ResolvedDocumentID != nil {
			appendDoc(*citation.ResolvedDocumentID)
		}
	}

	// Conservative fallback: the caller always sees some provenance.
	if len(relevant) == 0 {
		for _, doc := range searched {
			appendDoc(doc.ID)
		}
	}
	return citations, relevant
}

// resolve tries, in order: exact external-ref/URI match, substring match
// in either direction, then fuzzy containment against filename/title.
func (idx *catalogIndex) resolve(ref string) (domain.CatalogDocument, bool) {
	ref = strings.ToLower(strings.TrimSpace(ref))
	if ref == "" {
		return domain.CatalogDocument{}, false
	}

	if i, ok := idx.byRef[ref]; ok {
		return idx.docs[i], true
	}
	if i, ok := idx.byURI[ref]; ok {
		return idx.docs[i], true
	}
	if i, ok := idx.idIndex[ref]; ok {
		return idx.docs[i], true
	}

	for i, doc := range idx.docs {
		extRef := strings.ToLower(doc.ExternalRef)
		if extRef != "" && (strings.Contains(ref, extRef) || strings.Contains(extRef, ref)) {
			return idx.docs[i], true
		}
	}

	for i, doc := range idx.docs {
		filename := strings.ToLower(doc.Filename)
		title := strings.ToLower(doc.Title)
		if filename != "" && (strings.Contains(ref, filename) || strings.Contains(filename, ref)) {
			return idx.docs[i], true
		}
		if title != "" && (strings.Contains(ref, title) || strings.Contains(title, ref)) {
			return idx.docs[i], true
		}
	}
	return domain.CatalogDocument{}, false
}
