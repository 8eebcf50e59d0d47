/*
Package upload converts user-supplied image files into embeddable data URIs.

A file arrives either from a picker (one file) or from a drop (several files, the first
image wins). The declared media type must begin with "image/". Accepted files are read
asynchronously; the caller's callback receives the resulting domain.UploadedImage unless
the read was cancelled first.
*/
package upload
