package discovery

const hkexIndexPage = `<!DOCTYPE html>
<html><body>
<table class="table sticky-header-table">
  <thead><tr><th>Release Time</th><th>Stock Code</th><th>Document</th></tr></thead>
  <tbody>
    <tr>
      <td class="release-time"><span class="mobile-list-heading">Release Time: </span>14/03/2025 18:42</td>
      <td class="stock-short-code">01357</td>
      <td><div class="doc-link"><a href="/listedco/listconews/sehk/2025/0314/2025031400801.pdf">VOLUNTARY ANNOUNCEMENT - PURCHASE OF BITCOIN</a></div></td>
    </tr>
    <tr>
      <td class="release-time"><span class="mobile-list-heading">Release Time: </span>28/02/2025 17:05</td>
      <td class="stock-short-code">01357</td>
      <td><div class="doc-link"><a href="/listedco/listconews/sehk/2025/0228/2025022800512.pdf">Annual Report 2024</a></div></td>
    </tr>
  </tbody>
</table>
</body></html>`
