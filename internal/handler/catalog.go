package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/lumiere-storefront/internal/domain/product"
)

const (
	homeFeaturedSize = 4
	homeLatestSize   = 8
)

func writeCatalogError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, product.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	zctx.From(r.Context()).Error("Catalog request failed", zap.Error(err))
	writeError(w, http.StatusBadGateway, "catalog unavailable")
}

// ListProducts returns one page of products.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	list, err := h.catalog.ListProducts(r.Context(), page)
	if err != nil {
		writeCatalogError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("products")
		encodeProducts(e, list.Products)
		e.FieldStart("pageInfo")
		encodePageInfo(e, list.PageInfo)
		e.ObjEnd()
	})
}

// GetProduct returns a product by handle.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.GetProduct(r.Context(), r.PathValue("handle"))
	if err != nil {
		writeCatalogError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeProduct(e, *p) })
}

// ListCollections returns one page of collections.
func (h *Handler) ListCollections(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	list, err := h.catalog.ListCollections(r.Context(), page)
	if err != nil {
		writeCatalogError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("collections")
		e.ArrStart()
		for i := range list.Collections {
			encodeCollection(e, &list.Collections[i], false)
		}
		e.ArrEnd()
		e.FieldStart("pageInfo")
		encodePageInfo(e, list.PageInfo)
		e.ObjEnd()
	})
}

// GetCollection returns a collection with one page of its products.
func (h *Handler) GetCollection(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, err := h.catalog.GetCollection(r.Context(), r.PathValue("handle"), page)
	if err != nil {
		writeCatalogError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCollection(e, c, true) })
}

// Home fetches the featured collection and the latest products
// concurrently. A missing featured collection renders as null.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	var (
		featured *product.Collection
		latest   *product.List
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		if h.cfg.FeaturedCollection == "" {
			return nil
		}
		c, err := h.catalog.GetCollection(ctx, h.cfg.FeaturedCollection, product.Page{First: homeFeaturedSize})
		if errors.Is(err, product.ErrNotFound) {
			zctx.From(ctx).Warn("Featured collection not found", zap.String("handle", h.cfg.FeaturedCollection))
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "featured collection")
		}
		featured = c
		return nil
	})
	g.Go(func() error {
		list, err := h.catalog.ListProducts(ctx, product.Page{First: homeLatestSize})
		if err != nil {
			return errors.Wrap(err, "latest products")
		}
		latest = list
		return nil
	})
	if err := g.Wait(); err != nil {
		writeCatalogError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("featured")
		encodeCollection(e, featured, true)
		e.FieldStart("products")
		encodeProducts(e, latest.Products)
		e.ObjEnd()
	})
}
