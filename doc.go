// Package reach renders the predicted-impressions form: a single page that
// collects six engagement metrics, submits them to a prediction service, and
// shows the predicted impression that comes back.
//
// Pages are built out of Components. A Component is some piece of the HTML
// document that should be included in the page's output; a Page is a
// Component that gets rendered itself rather than being included in another
// Component. The predict page is a Page; the metrics form, the result title,
// the toast and the theme toggle are Components, as is the layout that wraps
// them.
//
// Each server has a Site, which acts as a singleton for the server and
// provides the fs.FS containing the templates the Components use. The Site is
// available at render time as .Site, and the page being rendered as .Page.
//
// Components list the Components they rely on through UseComponents, so the
// templates, CSS and JavaScript of the whole tree are collected whenever the
// page is rendered. CSS and JavaScript can be embedded (rendered from a
// template) or linked, and their order in the output is resolved from the
// ordering constraints each resource declares.
//
// FormSite, PredictPage and the Components in this package implement the
// three revisions of the form: classic, themed (dark/light toggle and a
// random background photo) and animated (CSS animations and emoji copy).
package reach
